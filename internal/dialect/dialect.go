package dialect

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind identifies a comment syntax family.
type Kind uint8

const (
	// C covers the C family: //, /// and /* openers.
	C Kind = iota
	// Basic covers Visual Basic style ' and REM comments.
	Basic
	// FSharp covers //, /// and (* openers.
	FSharp
	// Hash covers # line comments (Python, shells, Ruby, YAML, ...).
	Hash
	// Markup covers <!-- comments (HTML, XML, Markdown).
	Markup

	kindCount
)

func (k Kind) String() string {
	switch k {
	case C:
		return "c"
	case Basic:
		return "basic"
	case FSharp:
		return "fsharp"
	case Hash:
		return "hash"
	case Markup:
		return "markup"
	default:
		return "unknown"
	}
}

func (k Kind) GoString() string {
	return fmt.Sprintf("dialect.Kind(%s)", k.String())
}

// Valid reports whether k is one of the known dialects.
func (k Kind) Valid() bool {
	return k < kindCount
}

// Openers returns the comment-opening tokens of the dialect, longest first so
// that "///" wins over "//".
func (k Kind) Openers() []string {
	switch k {
	case C:
		return []string{"///", "//", "/*"}
	case Basic:
		return []string{"'"}
	case FSharp:
		return []string{"///", "//", "(*"}
	case Hash:
		return []string{"#"}
	case Markup:
		return []string{"<!--"}
	default:
		return nil
	}
}

// StripOpener removes the dialect's comment opener from the start of text.
// Basic also accepts the REM keyword in any case followed by a blank.
func (k Kind) StripOpener(text string) (string, bool) {
	if k == Basic && len(text) > 3 && strings.EqualFold(text[:3], "rem") && (text[3] == ' ' || text[3] == '\t') {
		return text[4:], true
	}
	for _, op := range k.Openers() {
		if strings.HasPrefix(text, op) {
			return text[len(op):], true
		}
	}
	return "", false
}

// Closers returns block-comment terminators that may trail a directive.
func (k Kind) Closers() []string {
	switch k {
	case C:
		return []string{"*/"}
	case FSharp:
		return []string{"*)"}
	case Markup:
		return []string{"-->"}
	default:
		return nil
	}
}

// Parse converts a dialect name to a Kind.
func Parse(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "c", "cfamily", "c-family":
		return C, nil
	case "basic", "vb":
		return Basic, nil
	case "fsharp", "f#":
		return FSharp, nil
	case "hash", "script":
		return Hash, nil
	case "markup", "html", "xml":
		return Markup, nil
	default:
		return C, fmt.Errorf("unknown dialect %q (expected: c|basic|fsharp|hash|markup)", name)
	}
}

var languages = map[string]Kind{
	"c":               C,
	"cpp":             C,
	"csharp":          C,
	"cuda-cpp":        C,
	"dart":            C,
	"go":              C,
	"groovy":          C,
	"java":            C,
	"javascript":      C,
	"javascriptreact": C,
	"jsonc":           C,
	"kotlin":          C,
	"objective-c":     C,
	"objective-cpp":   C,
	"php":             C,
	"rust":            C,
	"scala":           C,
	"swift":           C,
	"typescript":      C,
	"typescriptreact": C,
	"vb":              Basic,
	"vbnet":           Basic,
	"basic":           Basic,
	"fsharp":          FSharp,
	"coffeescript":    Hash,
	"dockerfile":      Hash,
	"elixir":          Hash,
	"makefile":        Hash,
	"perl":            Hash,
	"powershell":      Hash,
	"python":          Hash,
	"r":               Hash,
	"ruby":            Hash,
	"shellscript":     Hash,
	"toml":            Hash,
	"yaml":            Hash,
	"html":            Markup,
	"markdown":        Markup,
	"xml":             Markup,
	"svg":             Markup,
}

var extensions = map[string]Kind{
	".c": C, ".h": C, ".cc": C, ".cpp": C, ".cxx": C, ".hpp": C, ".cs": C,
	".java": C, ".js": C, ".jsx": C, ".mjs": C, ".ts": C, ".tsx": C, ".go": C,
	".rs": C, ".kt": C, ".swift": C, ".scala": C, ".dart": C, ".php": C,
	".vb": Basic, ".bas": Basic, ".vbs": Basic,
	".fs": FSharp, ".fsi": FSharp, ".fsx": FSharp,
	".py": Hash, ".sh": Hash, ".bash": Hash, ".zsh": Hash, ".rb": Hash, ".pl": Hash,
	".yaml": Hash, ".yml": Hash, ".toml": Hash, ".r": Hash, ".ps1": Hash, ".ex": Hash, ".exs": Hash,
	".html": Markup, ".htm": Markup, ".xml": Markup, ".md": Markup, ".svg": Markup, ".xaml": Markup,
}

// ForLanguage maps an editor language identifier to a dialect. Unknown
// identifiers fall back to C.
func ForLanguage(id string) (Kind, bool) {
	k, ok := languages[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return C, false
	}
	return k, true
}

// ForPath picks a dialect from the file extension. Unknown extensions fall back
// to C.
func ForPath(path string) (Kind, bool) {
	k, ok := extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return C, false
	}
	return k, true
}
