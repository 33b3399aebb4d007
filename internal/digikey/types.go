package digikey

// searchRequest is the keyword-search payload.
type searchRequest struct {
	Keywords            string        `json:"Keywords"`
	RecordCount         int           `json:"RecordCount"`
	RecordStartPosition int           `json:"RecordStartPosition"`
	Filters             searchFilters `json:"Filters"`
}

type searchFilters struct {
	ManufacturerIDs []int `json:"ManufacturerIds,omitempty"`
}

type searchResponse struct {
	Products []product `json:"Products"`
}

type product struct {
	ManufacturerPartNumber string          `json:"ManufacturerPartNumber"`
	DigiKeyPartNumber      string          `json:"DigiKeyPartNumber"`
	Manufacturer           manufacturerRef `json:"Manufacturer"`
	ProductStatus          string          `json:"ProductStatus"`
	DatasheetURL           string          `json:"DatasheetUrl"`
}

type manufacturerRef struct {
	ID   int    `json:"Id"`
	Name string `json:"Name"`
}

// ProductMatch is the search result selected as authoritative for a part
// number. At most one is produced per search.
type ProductMatch struct {
	ManufacturerPartNumber string
	DigiKeyPartNumber      string
	ManufacturerName       string
	DatasheetURL           string
	Active                 bool
}
