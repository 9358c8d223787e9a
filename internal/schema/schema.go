// Package schema checks generated XML against the Factur-X XSD of its
// profile using libxml2 through go-xsd-validate.
package schema

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	xsdvalidate "github.com/terminalstatic/go-xsd-validate"

	"github.com/rezonia/facturx/internal/model"
)

var (
	initOnce sync.Once
	initErr  error
	inited   bool
)

// ErrSchemaNotFound is returned when the directory has no XSD for a profile
var ErrSchemaNotFound = errors.New("schema not found")

// SchemaError lists the messages reported by the XSD validator
type SchemaError struct {
	Profile  model.Profile
	Messages []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("profile %s: schema validation failed: %s", e.Profile, strings.Join(e.Messages, "; "))
}

// Validator validates documents against per-profile XSD files in a
// directory. Parsed schemas are cached; Free releases them.
type Validator struct {
	dir string

	mu       sync.Mutex
	handlers map[schemaKey]*xsdvalidate.XsdHandler
}

type schemaKey struct {
	kind    model.DocumentKind
	profile model.Profile
}

// New creates a validator over dir
func New(dir string) (*Validator, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("xsd dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("xsd dir %s is not a directory", dir)
	}

	initOnce.Do(func() {
		initErr = xsdvalidate.Init()
		inited = initErr == nil
	})
	if initErr != nil {
		return nil, fmt.Errorf("init libxml2: %w", initErr)
	}

	return &Validator{dir: dir, handlers: make(map[schemaKey]*xsdvalidate.XsdHandler)}, nil
}

// Cleanup releases libxml2 state. Call once at process exit after every
// validator has been freed. It does nothing when no validator was created.
func Cleanup() {
	if inited {
		xsdvalidate.Cleanup()
	}
}

// SchemaFile resolves the Factur-X XSD of p in dir. It accepts both
// Factur-X_EN16931.xsd and versioned names like Factur-X_1.07.2_EN16931.xsd.
func SchemaFile(dir string, p model.Profile) (string, error) {
	return SchemaFileFor(dir, model.KindInvoice, p)
}

// SchemaFileFor resolves the XSD of p for the document kind. Orders use
// Order-X_<BASIC|COMFORT|EXTENDED>.xsd with the same versioned variants.
// Among versioned files the highest version wins.
func SchemaFileFor(dir string, kind model.DocumentKind, p model.Profile) (string, error) {
	if !p.Valid() {
		return "", fmt.Errorf("unknown profile %q", p)
	}
	prefix, tag := "Factur-X_", schemaTag(p)
	if kind == model.KindOrder {
		if !p.SupportsOrders() {
			return "", fmt.Errorf("profile %s has no Order-X schema", p)
		}
		prefix, tag = "Order-X_", strings.ToUpper(p.OrderSlug())
	}

	exact := filepath.Join(dir, prefix+tag+".xsd")
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, prefix+"*_"+tag+".xsd"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%s%s in %s: %w", prefix, tag, dir, ErrSchemaNotFound)
	}
	version := func(path string) string {
		name := strings.TrimPrefix(filepath.Base(path), prefix)
		return strings.TrimSuffix(name, "_"+tag+".xsd")
	}
	sort.Slice(matches, func(i, j int) bool {
		return compareVersions(version(matches[i]), version(matches[j])) < 0
	})
	return matches[len(matches)-1], nil
}

// compareVersions orders dotted versions segment by segment, numerically
// where both segments are numbers
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var x, y string
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		xn, xerr := strconv.Atoi(x)
		yn, yerr := strconv.Atoi(y)
		switch {
		case xerr == nil && yerr == nil && xn != yn:
			if xn < yn {
				return -1
			}
			return 1
		case (xerr != nil || yerr != nil) && x != y:
			return strings.Compare(x, y)
		}
	}
	return 0
}

// schemaTag is the profile part of the official XSD file names
func schemaTag(p model.Profile) string {
	return strings.ReplaceAll(string(p), "_", "")
}

// Validate checks data against the schema of p for the document kind
func (v *Validator) Validate(ctx context.Context, kind model.DocumentKind, p model.Profile, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	handler, err := v.handler(schemaKey{kind: kind, profile: p})
	if err != nil {
		return err
	}

	err = handler.ValidateMem(data, xsdvalidate.ValidErrDefault)
	if err == nil {
		return nil
	}

	var verr xsdvalidate.ValidationError
	if errors.As(err, &verr) {
		msgs := make([]string, 0, len(verr.Errors))
		for _, se := range verr.Errors {
			msgs = append(msgs, formatStructError(se))
		}
		return &SchemaError{Profile: p, Messages: msgs}
	}
	return &SchemaError{Profile: p, Messages: []string{err.Error()}}
}

func formatStructError(se xsdvalidate.StructError) string {
	msg := strings.TrimSpace(se.Message)
	if se.Line > 0 {
		return fmt.Sprintf("line %d: %s", se.Line, msg)
	}
	return msg
}

// handler returns the cached schema of key; v.mu must be held
func (v *Validator) handler(key schemaKey) (*xsdvalidate.XsdHandler, error) {
	if h, ok := v.handlers[key]; ok {
		return h, nil
	}
	path, err := SchemaFileFor(v.dir, key.kind, key.profile)
	if err != nil {
		return nil, err
	}
	h, err := xsdvalidate.NewXsdHandlerUrl(path, xsdvalidate.ParsErrDefault)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	v.handlers[key] = h
	return h, nil
}

// Free releases the parsed schemas
func (v *Validator) Free() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for key, h := range v.handlers {
		h.Free()
		delete(v.handlers, key)
	}
}
