// Package raw is the object graph handed to the writer: names, numbers,
// strings, arrays, dictionaries, streams and indirect references. Values are
// built once and serialized; nothing reads them back except tests.
package raw

import "fmt"

// ObjectRef names an indirect object. The zero value is unallocated.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

func (r ObjectRef) IsZero() bool { return r.Num == 0 }

// Object is implemented by every value in this package.
type Object interface {
	object()
}

func (NameObj) object()    {}
func (NumberObj) object()  {}
func (StringObj) object()  {}
func (*ArrayObj) object()  {}
func (*DictObj) object()   {}
func (*StreamObj) object() {}
func (RefObj) object()     {}
