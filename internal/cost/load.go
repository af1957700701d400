package cost

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// scheduleSchema constrains cost schedule documents. Coefficients must be
// non-negative integers; omitted dimensions cost nothing.
const scheduleSchema = `
#Function: {
	kind: *"constant" | "linear" | "logn" | "nlogn"
	a:    *0 | int & >=0
	b:    *0 | int & >=0
}

#Entry: {
	runtime?:      #Function
	read_count?:   #Function
	read_length?:  #Function
	write_count?:  #Function
	write_length?: #Function
}

#Limit: {
	runtime:      int & >=0
	read_count:   int & >=0
	read_length:  int & >=0
	write_count:  int & >=0
	write_length: int & >=0
}

name?:    string
limit?:   #Limit
default?: #Entry
costs: [string]: #Entry
`

// LoadSchedule reads a CUE cost schedule from path.
func LoadSchedule(path string) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cost schedule: %w", err)
	}
	return ParseSchedule(path, data)
}

// ParseSchedule compiles and validates a CUE cost schedule document.
// Values not given in the document are taken from DefaultSchedule: the
// limit when no limit block is present, and every operation the document
// does not list.
func ParseSchedule(filename string, data []byte) (*Schedule, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(scheduleSchema, cue.Filename("schedule-schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling schedule schema: %w", err)
	}
	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("compiling cost schedule: %w", err)
	}
	v := schema.Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating cost schedule: %w", err)
	}

	s := DefaultSchedule()
	s.Name = filename
	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, fmt.Errorf("name: %w", err)
		}
		s.Name = name
	}

	if limitVal := v.LookupPath(cue.ParsePath("limit")); limitVal.Exists() {
		limit, err := decodeLimit(limitVal)
		if err != nil {
			return nil, fmt.Errorf("limit: %w", err)
		}
		s.Limit = limit
	}

	if defVal := v.LookupPath(cue.ParsePath("default")); defVal.Exists() {
		def, err := decodeEntry(defVal)
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		s.Default = def
	}

	iter, err := v.LookupPath(cue.ParsePath("costs")).Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating costs: %w", err)
	}
	for iter.Next() {
		entry, err := decodeEntry(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("costs.%q: %w", iter.Selector().Unquoted(), err)
		}
		s.Entries[iter.Selector().Unquoted()] = entry
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeLimit(v cue.Value) (ExecutionCost, error) {
	var out ExecutionCost
	for _, d := range Dimensions {
		n, err := v.LookupPath(cue.ParsePath(string(d))).Uint64()
		if err != nil {
			return ExecutionCost{}, fmt.Errorf("%s: %w", d, err)
		}
		switch d {
		case Runtime:
			out.Runtime = n
		case ReadCount:
			out.ReadCount = n
		case ReadLength:
			out.ReadLength = n
		case WriteCount:
			out.WriteCount = n
		case WriteLength:
			out.WriteLength = n
		}
	}
	return out, nil
}

func decodeEntry(v cue.Value) (Entry, error) {
	var e Entry
	for _, d := range Dimensions {
		fv := v.LookupPath(cue.ParsePath(string(d)))
		if !fv.Exists() {
			continue
		}
		f, err := decodeFunction(fv)
		if err != nil {
			return Entry{}, fmt.Errorf("%s: %w", d, err)
		}
		switch d {
		case Runtime:
			e.Runtime = f
		case ReadCount:
			e.ReadCount = f
		case ReadLength:
			e.ReadLength = f
		case WriteCount:
			e.WriteCount = f
		case WriteLength:
			e.WriteLength = f
		}
	}
	return e, nil
}

func decodeFunction(v cue.Value) (Function, error) {
	kind, err := v.LookupPath(cue.ParsePath("kind")).String()
	if err != nil {
		return Function{}, fmt.Errorf("kind: %w", err)
	}
	a, err := v.LookupPath(cue.ParsePath("a")).Uint64()
	if err != nil {
		return Function{}, fmt.Errorf("a: %w", err)
	}
	b, err := v.LookupPath(cue.ParsePath("b")).Uint64()
	if err != nil {
		return Function{}, fmt.Errorf("b: %w", err)
	}
	f := Function{Kind: FunctionKind(kind), A: a, B: b}
	return f, f.Validate()
}
