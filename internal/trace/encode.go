package trace

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"stackscope/internal/bytecode"
)

// Format selects a trace export encoding.
type Format uint8

const (
	FormatJSON    Format = iota + 1 // NDJSON, one event per line after a header
	FormatMsgpack                   // single msgpack document
)

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json":
		return FormatJSON, nil
	case "msgpack":
		return FormatMsgpack, nil
	default:
		return 0, fmt.Errorf("invalid trace format: %q (expected: json|msgpack)", s)
	}
}

// wire format version; bump on incompatible changes.
const wireVersion = 1

type wireHeader struct {
	Kind    string `json:"kind" msgpack:"kind"`
	Version int    `json:"v" msgpack:"v"`
	Stop    string `json:"stop" msgpack:"stop"`
	Events  int    `json:"events" msgpack:"events"`
}

type wireValue struct {
	Type     string `json:"type,omitempty" msgpack:"type"`
	Repr     string `json:"repr" msgpack:"repr"`
	Abstract bool   `json:"abstract,omitempty" msgpack:"abstract"`
}

type wireInstr struct {
	Op     string `json:"op" msgpack:"op"`
	Arg    int    `json:"arg" msgpack:"arg"`
	HasArg bool   `json:"hasArg" msgpack:"hasArg"`
	Line   int    `json:"line" msgpack:"line"`
	Offset int    `json:"offset" msgpack:"offset"`
}

type wireEvent struct {
	Seq     uint64      `json:"seq" msgpack:"seq"`
	Frame   uint64      `json:"frame" msgpack:"frame"`
	Kind    string      `json:"kind" msgpack:"kind"`
	Instr   *wireInstr  `json:"instr,omitempty" msgpack:"instr"`
	Stack   []wireValue `json:"stack" msgpack:"stack"`
	Detail  string      `json:"detail,omitempty" msgpack:"detail"`
}

type wireFrame struct {
	ID     uint64 `json:"id" msgpack:"id"`
	Parent uint64 `json:"parent" msgpack:"parent"`
	Name   string `json:"name" msgpack:"name"`
	Qual   string `json:"qual" msgpack:"qual"`
	File   string `json:"file,omitempty" msgpack:"file"`
	Depth  int    `json:"depth" msgpack:"depth"`
}

type wireTrace struct {
	Header wireHeader  `msgpack:"header"`
	Frames []wireFrame `msgpack:"frames"`
	Events []wireEvent `msgpack:"events"`
}

// Encode writes the trace to w in the given format. JSON output is NDJSON in
// the shape of a deterministic execution log: a header line, one line per
// frame, one line per event. Msgpack output is a single document.
func Encode(t *Trace, w io.Writer, format Format) error {
	doc := toWire(t)
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(doc.Header); err != nil {
			return fmt.Errorf("trace: encode header: %w", err)
		}
		for _, f := range doc.Frames {
			if err := enc.Encode(f); err != nil {
				return fmt.Errorf("trace: encode frame %d: %w", f.ID, err)
			}
		}
		for _, ev := range doc.Events {
			if err := enc.Encode(ev); err != nil {
				return fmt.Errorf("trace: encode event %d: %w", ev.Seq, err)
			}
		}
		return nil
	case FormatMsgpack:
		if err := msgpack.NewEncoder(w).Encode(doc); err != nil {
			return fmt.Errorf("trace: encode msgpack: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("trace: unknown format %d", format)
	}
}

// DecodeMsgpack reads back a trace written with FormatMsgpack. Round-trip
// tooling only; the engine itself never consumes persisted traces.
func DecodeMsgpack(r io.Reader) (*Trace, error) {
	var doc wireTrace
	if err := msgpack.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("trace: decode msgpack: %w", err)
	}
	if doc.Header.Kind != "header" {
		return nil, fmt.Errorf("trace: missing header")
	}
	if doc.Header.Version != wireVersion {
		return nil, fmt.Errorf("trace: unsupported trace version %d", doc.Header.Version)
	}
	return fromWire(doc)
}

func toWire(t *Trace) wireTrace {
	doc := wireTrace{
		Header: wireHeader{Kind: "header", Version: wireVersion, Stop: t.stop.String(), Events: t.Len()},
	}
	for _, f := range t.frames {
		doc.Frames = append(doc.Frames, wireFrame{
			ID: f.ID, Parent: f.ParentID, Name: f.Name, Qual: f.QualName, File: f.File, Depth: f.Depth,
		})
	}
	for _, ev := range t.events {
		wev := wireEvent{
			Seq: ev.Seq, Frame: ev.FrameID, Kind: ev.Kind.String(), Detail: ev.Detail,
			Stack: make([]wireValue, 0, len(ev.Stack)),
		}
		for _, v := range ev.Stack {
			wev.Stack = append(wev.Stack, wireValue{Type: v.TypeName, Repr: v.Repr, Abstract: v.Abstract})
		}
		if ev.Instr != nil {
			wev.Instr = &wireInstr{
				Op: ev.Instr.Op.String(), Arg: ev.Instr.Arg, HasArg: ev.Instr.HasArg,
				Line: ev.Instr.Line, Offset: ev.Instr.Offset,
			}
		}
		doc.Events = append(doc.Events, wev)
	}
	return doc
}

func fromWire(doc wireTrace) (*Trace, error) {
	t := &Trace{byID: make(map[uint64]int, len(doc.Frames))}
	for _, f := range doc.Frames {
		t.byID[f.ID] = len(t.frames)
		t.frames = append(t.frames, Frame{
			ID: f.ID, ParentID: f.Parent, Name: f.Name, QualName: f.Qual, File: f.File, Depth: f.Depth,
		})
	}
	for _, wev := range doc.Events {
		kind, err := ParseKind(wev.Kind)
		if err != nil {
			return nil, fmt.Errorf("trace: event %d: %w", wev.Seq, err)
		}
		ev := Event{Seq: wev.Seq, FrameID: wev.Frame, Kind: kind, Detail: wev.Detail, Stack: Snapshot{}}
		for _, v := range wev.Stack {
			ev.Stack = append(ev.Stack, ValueDescriptor{TypeName: v.Type, Repr: v.Repr, Abstract: v.Abstract})
		}
		if wev.Instr != nil {
			op, err := bytecode.ParseOp(wev.Instr.Op)
			if err != nil {
				return nil, fmt.Errorf("trace: event %d: %w", wev.Seq, err)
			}
			ev.Instr = &bytecode.Instruction{
				Op: op, Arg: wev.Instr.Arg, HasArg: wev.Instr.HasArg,
				Line: wev.Instr.Line, Offset: wev.Instr.Offset,
			}
		}
		t.events = append(t.events, ev)
	}
	switch doc.Header.Stop {
	case "end":
		t.stop = StopEnd
	case "loop":
		t.stop = StopLoop
	case "step-limit":
		t.stop = StopStepLimit
	case "interrupted":
		t.stop = StopInterrupted
	case "unwound":
		t.stop = StopUnwound
	default:
		return nil, fmt.Errorf("trace: invalid stop reason %q", doc.Header.Stop)
	}
	return t, nil
}
