package importer

import "strings"

// LastPassParser parses LastPass CSV exports:
// url,username,password,totp,extra,name,grouping,fav
type LastPassParser struct{}

const (
	lpColURL      = "url"
	lpColPassword = "password"
	lpColName     = "name"
)

// secureNoteURL marks LastPass secure notes, which have no password.
const secureNoteURL = "http://sn"

// Source returns SourceLastPass.
func (p *LastPassParser) Source() Source {
	return SourceLastPass
}

// Parse parses LastPass CSV data.
func (p *LastPassParser) Parse(data []byte) (*Result, error) {
	rows, warnings, err := readCSV(data, lpColPassword)
	if err != nil {
		return nil, err
	}

	return parseCSVRows(rows, warnings, func(row csvRow) (string, string, string, string) {
		name := DecodeHTMLEntities(row.get(lpColName))
		link := row.get(lpColURL)
		if strings.EqualFold(strings.TrimSpace(link), secureNoteURL) {
			return name, "", "", "secure note"
		}
		return name, link, row.get(lpColPassword), ""
	}), nil
}
