package qbo

// Customer is the subset of the Customer entity the report form needs.
type Customer struct {
	ID   string
	Name string
}

// Account is the subset of the Account entity exposed for account filters.
type Account struct {
	ID      string
	Name    string
	Type    string
	SubType string
}

// Query response envelope shapes. The entity query endpoint wraps results in
// a QueryResponse object keyed by entity name.
type queryEnvelope struct {
	QueryResponse queryResponse `json:"QueryResponse"`
}

type queryResponse struct {
	Customer []customerJSON `json:"Customer"`
	Account  []accountJSON  `json:"Account"`
	Vendor   []vendorJSON   `json:"Vendor"`
}

type customerJSON struct {
	ID          string `json:"Id"`
	DisplayName string `json:"DisplayName"`
	Active      bool   `json:"Active"`
}

type accountJSON struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	AccountType    string `json:"AccountType"`
	AccountSubType string `json:"AccountSubType"`
}

type vendorJSON struct {
	ID            string `json:"Id"`
	DisplayName   string `json:"DisplayName"`
	Notes         string `json:"Notes"`
	TaxIdentifier string `json:"TaxIdentifier"`
}
