package templates

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// PatternRoot holds one directory per reliability pattern.
	PatternRoot  = "reliability"
	ManifestFile = "base_design.json"
)

// Resolver reads prompt templates and pattern manifests below a root.
// Paths are slash-separated and relative to that root.
type Resolver struct {
	fsys fs.FS
}

// NewResolver serves templates from a directory on disk.
func NewResolver(root string) *Resolver {
	return &Resolver{fsys: os.DirFS(root)}
}

// NewResolverFS serves templates from any filesystem, e.g. an embed.FS or fstest.MapFS.
func NewResolverFS(fsys fs.FS) *Resolver {
	return &Resolver{fsys: fsys}
}

func (r *Resolver) Load(rel string) (string, error) {
	raw, err := fs.ReadFile(r.fsys, rel)
	if err != nil {
		return "", fmt.Errorf("failed to load template %s: %w", rel, err)
	}
	return string(raw), nil
}

// Substitute replaces every literal {{key}} in tpl with vars[key].
// Tokens without a value stay as they are. Replacement text is never rescanned.
// Where two tokens match at the same offset the longer one wins.
func Substitute(tpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tpl
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	// the replacer breaks ties in argument order
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// PatternDir maps a display name such as "Circuit Breaker" to its
// directory, "reliability/circuit_breaker".
func PatternDir(name string) string {
	return path.Join(PatternRoot, strings.ReplaceAll(strings.ToLower(name), " ", "_"))
}

// Manifest reads the substitution variables of a pattern. found is false,
// with a nil error, when the pattern has no manifest or the name does not
// map to a directory below the pattern root. String values are
// used verbatim; any other JSON value is kept as its raw JSON text.
func (r *Resolver) Manifest(name string) (vars map[string]string, found bool, err error) {
	p := path.Join(PatternDir(name), ManifestFile)
	// model supplied names may climb out of the root, e.g. "../.."
	if !fs.ValidPath(p) || !strings.HasPrefix(p, PatternRoot+"/") {
		return nil, false, nil
	}

	raw, err := fs.ReadFile(r.fsys, p)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read manifest %s: %w", p, err)
	}

	if !gjson.ValidBytes(raw) {
		return nil, true, fmt.Errorf("manifest %s is not valid JSON", p)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, true, fmt.Errorf("manifest %s must be a JSON object", p)
	}

	vars = make(map[string]string)
	doc.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String {
			vars[key.Str] = value.Str
		} else {
			vars[key.Str] = value.Raw
		}
		return true
	})
	return vars, true, nil
}

// Patterns lists the pattern directories that carry a manifest.
func (r *Resolver) Patterns() ([]string, error) {
	entries, err := fs.ReadDir(r.fsys, PatternRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := fs.Stat(r.fsys, path.Join(PatternRoot, e.Name(), ManifestFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
