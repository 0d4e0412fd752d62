package hexconv

// Halfbyte maps an ASCII hex digit to its value. Every other byte maps to 0xff, so
// (Halfbyte[a] | Halfbyte[b]) > 0x0f tells an invalid pair.
var Halfbyte = func() (table [256]byte) {
	for i := range table {
		table[i] = 0xff
	}

	for c := '0'; c <= '9'; c++ {
		table[c] = byte(c - '0')
	}

	for c := 'a'; c <= 'f'; c++ {
		table[c] = byte(c-'a') + 10
		table[c-'a'+'A'] = byte(c-'a') + 10
	}

	return table
}()
