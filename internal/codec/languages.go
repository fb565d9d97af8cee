package codec

import "strings"

// PlainText is the fallback language for untagged or unrecognized code.
const PlainText = "plain text"

// languages is the remote store's code-block language allow-list.
var languages = map[string]struct{}{}

func init() {
	for _, l := range []string{
		"abap", "arduino", "bash", "basic", "c", "clojure", "coffeescript", "c++", "c#",
		"css", "dart", "diff", "docker", "elixir", "elm", "erlang", "flow", "fortran",
		"f#", "gherkin", "glsl", "go", "graphql", "groovy", "haskell", "html", "java",
		"javascript", "json", "julia", "kotlin", "latex", "less", "lisp", "livescript",
		"lua", "makefile", "markdown", "markup", "matlab", "mermaid", "nix",
		"objective-c", "ocaml", "pascal", "perl", "php", PlainText, "powershell",
		"prolog", "protobuf", "python", "r", "reason", "ruby", "rust", "sass", "scala",
		"scheme", "scss", "shell", "sql", "swift", "typescript", "vb.net", "verilog",
		"vhdl", "visual basic", "webassembly", "xml", "yaml", "java/c/c++/c#",
	} {
		languages[l] = struct{}{}
	}
}

// aliases maps common fence tags to their allow-listed names.
var aliases = map[string]string{
	"sh":         "shell",
	"zsh":        "shell",
	"console":    "shell",
	"js":         "javascript",
	"jsx":        "javascript",
	"ts":         "typescript",
	"tsx":        "typescript",
	"py":         "python",
	"rb":         "ruby",
	"rs":         "rust",
	"kt":         "kotlin",
	"golang":     "go",
	"yml":        "yaml",
	"cpp":        "c++",
	"cs":         "c#",
	"csharp":     "c#",
	"fsharp":     "f#",
	"dockerfile": "docker",
	"md":         "markdown",
	"ps1":        "powershell",
	"proto":      "protobuf",
	"wasm":       "webassembly",
	"tex":        "latex",
	"text":       PlainText,
	"txt":        PlainText,
	"plaintext":  PlainText,
}

// NormalizeLanguage maps a fence tag onto the allow-list, falling back to
// PlainText when the tag is empty or unknown.
func NormalizeLanguage(tag string) string {
	l := strings.ToLower(strings.TrimSpace(tag))
	if _, ok := languages[l]; ok {
		return l
	}
	if a, ok := aliases[l]; ok {
		return a
	}
	return PlainText
}

// SupportedLanguage reports whether tag is on the allow-list as written
// (case-insensitively), without alias resolution.
func SupportedLanguage(tag string) bool {
	_, ok := languages[strings.ToLower(strings.TrimSpace(tag))]
	return ok
}
