package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"reflect"
	"testing"

	"stackscope/internal/bytecode"
)

func sampleTrace(t *testing.T) *Trace {
	t.Helper()
	b := NewBuilder()
	id, err := b.EnterFrame("main", "sample.main", "sample.sasm")
	if err != nil {
		t.Fatal(err)
	}
	in := bytecode.Instruction{Op: bytecode.OpPushConst, Arg: 0, HasArg: true, Line: 2}
	if err := b.Step(id, in, Snapshot{{TypeName: "int", Repr: "1"}}, ""); err != nil {
		t.Fatal(err)
	}
	if err := b.ExitFrame(id, Snapshot{}); err != nil {
		t.Fatal(err)
	}
	return b.Finish(StopEnd)
}

func TestMsgpackRoundTrip(t *testing.T) {
	tr := sampleTrace(t)

	var buf bytes.Buffer
	if err := Encode(tr, &buf, FormatMsgpack); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeMsgpack(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if got.Stop() != tr.Stop() {
		t.Errorf("stop reason %s, want %s", got.Stop(), tr.Stop())
	}
	if !reflect.DeepEqual(got.Frames(), tr.Frames()) {
		t.Errorf("frames differ:\n got %+v\nwant %+v", got.Frames(), tr.Frames())
	}
	if !reflect.DeepEqual(got.Events(), tr.Events()) {
		t.Errorf("events differ:\n got %+v\nwant %+v", got.Events(), tr.Events())
	}
}

func TestJSONEncodeShape(t *testing.T) {
	tr := sampleTrace(t)

	var buf bytes.Buffer
	if err := Encode(tr, &buf, FormatJSON); err != nil {
		t.Fatal(err)
	}

	sc := bufio.NewScanner(&buf)
	var lines []map[string]any
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %d is not JSON: %v", len(lines)+1, err)
		}
		lines = append(lines, m)
	}
	// header + 1 frame + 3 events
	if len(lines) != 5 {
		t.Fatalf("got %d NDJSON lines, want 5", len(lines))
	}
	if lines[0]["kind"] != "header" {
		t.Errorf("first line is %v, want header", lines[0]["kind"])
	}
	if lines[0]["stop"] != "end" {
		t.Errorf("header stop = %v", lines[0]["stop"])
	}
}

func TestDecodeMsgpackRejectsBadInput(t *testing.T) {
	if _, err := DecodeMsgpack(bytes.NewReader([]byte{0xc0})); err == nil {
		t.Error("decode of junk succeeded")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("json: %v %v", f, err)
	}
	if f, err := ParseFormat("msgpack"); err != nil || f != FormatMsgpack {
		t.Errorf("msgpack: %v %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
