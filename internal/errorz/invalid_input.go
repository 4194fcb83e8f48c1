package errorz

import "strings"

// InvalidInput signals that a provided input is invalid due to the wrapped errors.
type InvalidInput []error

func (e InvalidInput) Error() string {
	var b strings.Builder
	b.WriteString("invalid input:\n")
	for _, err := range e {
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

func (e InvalidInput) Unwrap() []error {
	return e
}

// Fields returns the messages of all Keyed errors by key. Errors without a
// key are listed under "_".
func (e InvalidInput) Fields() map[string]string {
	out := make(map[string]string, len(e))
	for _, err := range e {
		if k, ok := err.(Keyed); ok {
			out[k.Key] = k.Err.Error()
			continue
		}
		out["_"] = err.Error()
	}
	return out
}

// Check appends a Keyed error to the list when err is not nil.
func (e *InvalidInput) Check(key string, err error) {
	if err == nil {
		return
	}
	*e = append(*e, Keyed{Key: key, Err: err})
}

// OrNil returns nil when no errors were collected. This avoids returning a
// typed nil in an error interface.
func (e InvalidInput) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
