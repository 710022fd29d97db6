package extractor

import "unicode/utf8"

func extractText(data []byte) (string, error) {
	data = trimBOM(data)
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	return string(data), nil
}
