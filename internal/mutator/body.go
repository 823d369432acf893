package mutator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"
)

// ErrMalformedBody is returned when a JSON body cannot be mutated
var ErrMalformedBody = errors.New("malformed request body")

// --- form-urlencoded bodies ---

type formSegment struct {
	name string // decoded
	raw  string // original bytes, including "name=value"
}

// formBody keeps the raw segments so untouched fields are re-emitted verbatim.
type formBody struct {
	segments []formSegment
	names    []string // distinct names, first-seen order
	first    map[string]int
}

func parseForm(body []byte) *formBody {
	f := &formBody{first: make(map[string]int)}
	for _, raw := range bytes.Split(body, []byte("&")) {
		if len(raw) == 0 {
			continue
		}
		rawName, _, _ := bytes.Cut(raw, []byte("="))
		name := string(rawName)
		if n, err := url.QueryUnescape(name); err == nil {
			name = n
		}
		if _, seen := f.first[name]; !seen {
			f.first[name] = len(f.segments)
			f.names = append(f.names, name)
		}
		f.segments = append(f.segments, formSegment{name: name, raw: string(raw)})
	}
	return f
}

// replace rewrites the value of the first field called name.
func (f *formBody) replace(name, value string) []byte {
	idx := f.first[name]
	var b bytes.Buffer
	for i, seg := range f.segments {
		if i > 0 {
			b.WriteByte('&')
		}
		if i == idx {
			rawName, _, _ := bytes.Cut([]byte(seg.raw), []byte("="))
			b.Write(rawName)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value))
			continue
		}
		b.WriteString(seg.raw)
	}
	return b.Bytes()
}

func (f *formBody) append(name, value string) []byte {
	var b bytes.Buffer
	for i, seg := range f.segments {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(seg.raw)
	}
	if len(f.segments) > 0 {
		b.WriteByte('&')
	}
	b.WriteString(url.QueryEscape(name))
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(value))
	return b.Bytes()
}

// --- JSON bodies ---

type jsonField struct {
	key   string
	start int // offset of the raw string value in body
	end   int
}

type jsonObject struct {
	body   []byte
	fields []jsonField // top-level keys holding strings, document order
}

func parseJSONObject(body []byte) (*jsonObject, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedBody)
	}

	trimmed := bytes.TrimLeft(body, " \t\r\n")
	offset := len(body) - len(trimmed)

	root := gjson.ParseBytes(trimmed)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: JSON body is not an object", ErrMalformedBody)
	}

	obj := &jsonObject{body: body}
	var spliceErr error
	root.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			return true
		}
		start := offset + value.Index
		end := start + len(value.Raw)
		if value.Index <= 0 || end > len(body) || string(body[start:end]) != value.Raw {
			spliceErr = fmt.Errorf("%w: cannot locate value of key %q", ErrMalformedBody, key.String())
			return false
		}
		obj.fields = append(obj.fields, jsonField{key: key.String(), start: start, end: end})
		return true
	})
	if spliceErr != nil {
		return nil, spliceErr
	}

	return obj, nil
}

// replace substitutes the i-th string field with value, leaving every
// other byte of the body untouched.
func (o *jsonObject) replace(i int, value string) []byte {
	f := o.fields[i]
	quoted := quoteJSON(value)

	out := make([]byte, 0, len(o.body)-(f.end-f.start)+len(quoted))
	out = append(out, o.body[:f.start]...)
	out = append(out, quoted...)
	out = append(out, o.body[f.end:]...)
	return out
}

// quoteJSON encodes s as a JSON string without HTML escaping.
func quoteJSON(s string) []byte {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimRight(b.Bytes(), "\n")
}
