package engine

// reservedWords lists JavaScript keywords, future reserved words and literals
// that can never be used as generated identifiers.
var reservedWords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "enum": true, "export": true, "extends": true, "false": true,
	"finally": true, "for": true, "function": true, "if": true, "import": true,
	"in": true, "instanceof": true, "new": true, "null": true, "return": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true,
	// Strict mode and contextual
	"let": true, "static": true, "implements": true, "interface": true,
	"package": true, "private": true, "protected": true, "public": true,
	"await": true, "async": true, "of": true, "get": true, "set": true,
	// Globals a renamer must not shadow
	"undefined": true, "NaN": true, "Infinity": true, "eval": true, "arguments": true,
}

// regexKeywords are keywords after which a '/' starts a regular expression
// literal rather than a division.
var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

func isReservedWord(s string) bool {
	return reservedWords[s]
}
