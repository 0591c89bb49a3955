package writer

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/docpdf/ir/raw"
)

// Document is an in-memory table of indirect objects. Object numbers are
// handed out sequentially by Allocate, starting at 1, so the numbering of a
// document depends only on the order of calls made against it.
type Document struct {
	cfg        Config
	objects    map[raw.ObjectRef]raw.Object
	next       int
	root       raw.ObjectRef
	info       raw.ObjectRef
	identifier []byte
}

func NewDocument(cfg Config) *Document {
	return &Document{cfg: cfg, objects: make(map[raw.ObjectRef]raw.Object), next: 1}
}

// Allocate reserves the next object number.
func (d *Document) Allocate() raw.ObjectRef {
	ref := raw.ObjectRef{Num: d.next}
	d.next++
	return ref
}

// Set defines the object behind a previously allocated reference. Each
// reference can be defined once.
func (d *Document) Set(ref raw.ObjectRef, obj raw.Object) error {
	if ref.Num <= 0 || ref.Num >= d.next || ref.Gen != 0 {
		return fmt.Errorf("set %s: %w", ref, ErrUnallocated)
	}
	if _, ok := d.objects[ref]; ok {
		return fmt.Errorf("set %s: %w", ref, ErrObjectRedefined)
	}
	d.objects[ref] = obj
	return nil
}

// Add allocates a reference and defines obj behind it.
func (d *Document) Add(obj raw.Object) raw.ObjectRef {
	ref := d.Allocate()
	d.objects[ref] = obj
	return ref
}

func (d *Document) Object(ref raw.ObjectRef) (raw.Object, bool) {
	o, ok := d.objects[ref]
	return o, ok
}

// Len returns the number of allocated object numbers.
func (d *Document) Len() int { return d.next - 1 }

func (d *Document) SetRoot(ref raw.ObjectRef) { d.root = ref }
func (d *Document) Root() raw.ObjectRef       { return d.root }
func (d *Document) SetInfo(ref raw.ObjectRef) { d.info = ref }
func (d *Document) Info() raw.ObjectRef       { return d.info }

// SetIdentifier fixes the permanent half of the trailer /ID. Without it the
// permanent half is derived from the serialized body.
func (d *Document) SetIdentifier(id []byte) {
	d.identifier = append([]byte(nil), id...)
}

// Refs lists the defined references in object number order.
func (d *Document) Refs() []raw.ObjectRef {
	refs := make([]raw.ObjectRef, 0, len(d.objects))
	for ref := range d.objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })
	return refs
}

// Bytes serializes the document.
func (d *Document) Bytes() ([]byte, error) {
	if d.root.IsZero() {
		return nil, ErrNoRoot
	}
	if _, ok := d.objects[d.root]; !ok {
		return nil, fmt.Errorf("catalog %s: %w", d.root, ErrUndefinedObject)
	}
	for n := 1; n < d.next; n++ {
		if _, ok := d.objects[raw.ObjectRef{Num: n}]; !ok {
			return nil, fmt.Errorf("object %d: %w", n, ErrUndefinedObject)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-" + d.cfg.version() + "\n%\xE2\xE3\xCF\xD3\n")
	offsets := make([]int64, d.next)
	for _, ref := range d.Refs() {
		offsets[ref.Num] = int64(buf.Len())
		serialized, err := d.serializeObject(ref, d.objects[ref])
		if err != nil {
			return nil, err
		}
		buf.Write(serialized)
	}

	ids := fileID(d.identifier, buf.Bytes())

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", d.next)
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n < d.next; n++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[n])
	}

	trailer := raw.Dict()
	trailer.Put("Size", raw.NumberInt(int64(d.next)))
	trailer.Put("Root", raw.RefTo(d.root))
	if !d.info.IsZero() {
		trailer.Put("Info", raw.RefTo(d.info))
	}
	trailer.Put("ID", raw.NewArray(raw.HexStr(ids[0]), raw.HexStr(ids[1])))
	buf.WriteString("trailer\n")
	appendObject(&buf, trailer)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}

// WriteTo serializes the document to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	data, err := d.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

func (d *Document) serializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	if s, ok := obj.(*raw.StreamObj); ok {
		encoded, err := d.encodeStream(s)
		if err != nil {
			return nil, fmt.Errorf("encode stream %s: %w", ref, err)
		}
		obj = encoded
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	appendObject(&buf, obj)
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

// encodeStream returns a copy of s with the configured filter applied and
// /Length set. Streams that already carry a /Filter are written as given.
func (d *Document) encodeStream(s *raw.StreamObj) (*raw.StreamObj, error) {
	dict := raw.Dict()
	if s.Dict != nil {
		for k, v := range s.Dict.KV {
			dict.KV[k] = v
		}
	}
	data := s.Data
	if _, filtered := dict.Lookup("Filter"); !filtered && d.cfg.flate() && len(data) > 0 {
		level := d.cfg.Compression
		if level == 0 {
			level = -1
		}
		enc, err := deflate(data, level)
		if err != nil {
			return nil, err
		}
		data = enc
		dict.Put("Filter", raw.NameLiteral("FlateDecode"))
	}
	dict.Put("Length", raw.NumberInt(int64(len(data))))
	return &raw.StreamObj{Dict: dict, Data: data}, nil
}
