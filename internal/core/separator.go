package core

import "bytes"

// separatorSniffBytes bounds how much of the upload DetectSeparator reads.
const separatorSniffBytes = 500

// DetectSeparator picks the field delimiter of a CSV upload by counting
// commas and semicolons on its first line. Semicolon wins only with a
// strictly higher count; ties and empty input fall back to comma.
func DetectSeparator(data []byte) rune {
	if len(data) > separatorSniffBytes {
		data = data[:separatorSniffBytes]
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}

	commas := bytes.Count(data, []byte{','})
	semicolons := bytes.Count(data, []byte{';'})
	if semicolons > commas {
		return ';'
	}
	return ','
}
