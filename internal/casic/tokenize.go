package casic

// tokenize splits a sentence body (the part after '$') on ',' and '*',
// keeping empty tokens. For well formed input the identifier is the first
// token and the checksum digits are the last.
func tokenize(body string) []string {
	tokens := make([]string, 0, 8)
	start := 0
	for i := 0; i < len(body); i++ {
		if body[i] == ',' || body[i] == '*' {
			tokens = append(tokens, body[start:i])
			start = i + 1
		}
	}
	return append(tokens, body[start:])
}
