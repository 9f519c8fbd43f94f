package importer

// OnePasswordParser parses 1Password CSV exports. Only the Title, Website
// (or URL) and Password columns are read.
type OnePasswordParser struct{}

const (
	opColTitle    = "title"
	opColWebsite  = "website"
	opColURL      = "url"
	opColPassword = "password"
)

// Source returns SourceOnePassword.
func (p *OnePasswordParser) Source() Source {
	return SourceOnePassword
}

// Parse parses 1Password CSV data.
func (p *OnePasswordParser) Parse(data []byte) (*Result, error) {
	rows, warnings, err := readCSV(data, opColTitle, opColPassword)
	if err != nil {
		return nil, err
	}

	return parseCSVRows(rows, warnings, func(row csvRow) (string, string, string, string) {
		link := row.get(opColWebsite)
		if link == "" {
			link = row.get(opColURL)
		}
		return row.get(opColTitle), link, row.get(opColPassword), ""
	}), nil
}
