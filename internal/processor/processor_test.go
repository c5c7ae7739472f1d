package processor

import (
	"errors"
	"testing"
	"time"

	"profilepayloads/internal/value"
)

func mustProcess(t *testing.T, p Processor, v value.Value, in, out value.Type) value.Value {
	t.Helper()
	got, ok := Process(p, Field{}, v, in, out)
	if !ok {
		t.Fatalf("%s: %v (%s -> %s) produced no conversion", p.Name(), v, in, out)
	}
	return got
}

func roundTrip(t *testing.T, p Processor, v value.Value, in, out value.Type) {
	t.Helper()
	encoded := mustProcess(t, p, v, in, out)
	decoded := mustProcess(t, p, encoded, out, in)
	if !value.Equal(decoded, v) {
		t.Fatalf("%s: round trip of %v gave %v (via %v)", p.Name(), v, decoded, encoded)
	}
}

func TestHex2DataRoundTrip(t *testing.T) {
	p := NewHex2Data()
	for _, b := range [][]byte{{}, {0x00}, {0xde, 0xad, 0xbe, 0xef}, []byte("hello")} {
		roundTrip(t, p, value.Data(b), value.TypeData, value.TypeString)
	}
	got := mustProcess(t, p, value.String("DE:AD be-ef f"), value.TypeString, value.TypeData)
	if !value.Equal(got, value.Data([]byte{0xde, 0xad, 0xbe, 0xef})) {
		t.Fatalf("hex filtering failed: %v", got)
	}
	if s := mustProcess(t, p, value.Data([]byte{0xAB}), value.TypeData, value.TypeString); !value.Equal(s, value.String("ab")) {
		t.Fatalf("expected lowercase hex, got %v", s)
	}
}

func TestBase642DataRoundTrip(t *testing.T) {
	p := NewBase642Data()
	for _, b := range [][]byte{{}, {0xff, 0x00, 0x10}, []byte("payload")} {
		roundTrip(t, p, value.Data(b), value.TypeData, value.TypeString)
	}
	got := mustProcess(t, p, value.String("aGVs\nbG8=\t"), value.TypeString, value.TypeData)
	if !value.Equal(got, value.Data([]byte("hello"))) {
		t.Fatalf("unknown characters were not ignored: %v", got)
	}
}

func TestPlist2DictRoundTrip(t *testing.T) {
	p := NewPlist2Dict()
	dict := value.Dictionary(map[string]value.Value{
		"Enabled": value.Bool(true),
		"Name":    value.String("x"),
		"Count":   value.Int(3),
	})
	roundTrip(t, p, dict, value.TypeDictionary, value.TypeData)
	xml := []byte(`<?xml version="1.0" encoding="UTF-8"?><plist version="1.0"><dict><key>a</key><integer>1</integer></dict></plist>`)
	got := mustProcess(t, p, value.Data(xml), value.TypeData, value.TypeDictionary)
	if v, _ := got.Get("a"); !value.Equal(v, value.Int(1)) {
		t.Fatalf("xml plist not decoded: %v", got)
	}
	if _, ok := Process(Default(), Field{}, value.Data(xml), value.TypeData, value.TypeDictionary); ok {
		t.Fatalf("default data->dictionary only reads binary archives")
	}
}

func TestWeekdaysBitmaskIsBijection(t *testing.T) {
	p := NewWeekdaysBitmask2Int()
	for mask := int64(0); mask < 128; mask++ {
		roundTrip(t, p, value.Int(mask), value.TypeInteger, value.TypeArray)
	}
	got := mustProcess(t, p, value.Int(42), value.TypeInteger, value.TypeArray)
	want := value.Array(value.Int(2), value.Int(8), value.Int(32))
	if !value.Equal(got, want) {
		t.Fatalf("split(42) = %v, want %v", got, want)
	}
	if _, ok := Process(p, Field{}, value.Array(value.String("x")), value.TypeArray, value.TypeInteger); ok {
		t.Fatalf("non-integer elements must not sum")
	}
}

func TestTime2MinutesRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	p := NewTime2Minutes(func() time.Time { return now }, time.UTC)
	for _, minutes := range []int64{0, 1, 90, 23*60 + 59} {
		roundTrip(t, p, value.Int(minutes), value.TypeInteger, value.TypeDate)
	}
	got := mustProcess(t, p, value.Date(now), value.TypeDate, value.TypeInteger)
	if !value.Equal(got, value.Int(15*60+30)) {
		t.Fatalf("minutes past midnight = %v", got)
	}
}

func TestX5002SubjectArrayRoundTrip(t *testing.T) {
	p := NewX5002SubjectArray()
	for _, s := range []string{"CN=example", "CN=example,O=Org,C=SE"} {
		roundTrip(t, p, value.String(s), value.TypeString, value.TypeArray)
	}
	got := mustProcess(t, p, value.String("CN=a,O=b"), value.TypeString, value.TypeArray)
	want := value.Array(
		value.Array(value.Strings("CN", "a")),
		value.Array(value.Strings("O", "b")),
	)
	if !value.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestDockTileProcessors(t *testing.T) {
	tile := NewDockTileType()
	names := map[int64]string{1: "file-tile", 2: "url-tile", 3: "directory-tile"}
	for i, name := range names {
		got := mustProcess(t, tile, value.Int(i), value.TypeInteger, value.TypeString)
		if !value.Equal(got, value.String(name)) {
			t.Fatalf("tile %d = %v, want %s", i, got, name)
		}
		roundTrip(t, tile, value.Int(i), value.TypeInteger, value.TypeString)
		roundTrip(t, tile, value.String(name), value.TypeString, value.TypeInteger)
	}
	if _, ok := Process(tile, Field{}, value.Int(4), value.TypeInteger, value.TypeString); ok {
		t.Fatalf("unknown tile type must not convert")
	}

	pathType := NewDockTilePathType()
	roundTrip(t, pathType, value.Int(0), value.TypeInteger, value.TypeString)
	roundTrip(t, pathType, value.Int(15), value.TypeInteger, value.TypeString)
	if got := mustProcess(t, pathType, value.String("https://example.com"), value.TypeString, value.TypeInteger); !value.Equal(got, value.Int(15)) {
		t.Fatalf("url path type = %v", got)
	}

	label := NewDockTileLabel()
	if got := mustProcess(t, label, value.String("/Applications/Safari.app"), value.TypeString, value.TypeString); !value.Equal(got, value.String("Safari")) {
		t.Fatalf("label = %v", got)
	}
	if got := mustProcess(t, label, value.String("/Users/me/Downloads"), value.TypeString, value.TypeString); !value.Equal(got, value.String("Downloads")) {
		t.Fatalf("label = %v", got)
	}
	if _, ok := Process(label, Field{}, value.String(""), value.TypeString, value.TypeString); ok {
		t.Fatalf("empty label must not convert")
	}
}

type fakeRequirements struct{}

func (fakeRequirements) RequirementData(text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("empty requirement")
	}
	return append([]byte{0xfa, 0xde}, text...), nil
}

func (fakeRequirements) RequirementString(data []byte) (string, error) {
	if len(data) < 2 {
		return "", errors.New("short requirement")
	}
	return string(data[2:]), nil
}

func TestDesignatedRequirementUsesConverter(t *testing.T) {
	p := NewDesignatedCodeRequirement2Data(fakeRequirements{})
	roundTrip(t, p, value.String(`identifier "com.example.app" and anchor apple`), value.TypeString, value.TypeData)

	bare := NewDesignatedCodeRequirement2Data(nil)
	if _, ok := Process(bare, Field{}, value.String("anchor apple"), value.TypeString, value.TypeData); ok {
		t.Fatalf("missing converter must not convert")
	}
}

func TestDefaultConversions(t *testing.T) {
	p := Default()
	epoch := time.Unix(1700000000, 0)
	cases := []struct {
		in      value.Value
		from    value.Type
		to      value.Type
		want    value.Value
		convert bool
	}{
		{value.Int(0), value.TypeInteger, value.TypeBool, value.Bool(false), true},
		{value.Int(5), value.TypeInteger, value.TypeBool, value.Bool(true), true},
		{value.Int(5), value.TypeInteger, value.TypeFloat, value.Float(5), true},
		{value.Int(5), value.TypeInteger, value.TypeString, value.String("5"), true},
		{value.Int(5), value.TypeInteger, value.TypeArray, value.Undefined(), false},
		{value.Bool(true), value.TypeBool, value.TypeInteger, value.Int(1), true},
		{value.String(" 12 "), value.TypeString, value.TypeInteger, value.Int(12), true},
		{value.String("x"), value.TypeString, value.TypeInteger, value.Undefined(), false},
		{value.String("x"), value.TypeString, value.TypeArray, value.Array(value.String("x")), true},
		{value.String("x"), value.TypeString, value.TypeData, value.Data([]byte("x")), true},
		{value.Data([]byte("x")), value.TypeData, value.TypeString, value.String("x"), true},
		{value.Array(value.String("a"), value.Int(1), value.String("b")), value.TypeArray, value.TypeString, value.String("a,b"), true},
		{value.Array(value.Int(1)), value.TypeArray, value.TypeString, value.Undefined(), false},
		{value.Array(value.String("k"), value.Int(1)), value.TypeArray, value.TypeDictionary, value.Dictionary(map[string]value.Value{"k": value.Int(1)}), true},
		{value.Array(value.String("k")), value.TypeArray, value.TypeDictionary, value.Dictionary(map[string]value.Value{"k": value.String("")}), true},
		{value.Array(value.Int(1)), value.TypeArray, value.TypeInteger, value.Undefined(), false},
		{value.Dictionary(map[string]value.Value{"b": value.Int(2), "a": value.Int(1)}), value.TypeDictionary, value.TypeArray, value.Array(value.String("a"), value.Int(1), value.String("b"), value.Int(2)), true},
		{value.Date(epoch), value.TypeDate, value.TypeInteger, value.Int(1700000000), true},
		{value.Int(1700000000), value.TypeInteger, value.TypeDate, value.Date(epoch), true},
		{value.String("same"), value.TypeString, value.TypeString, value.String("same"), true},
	}
	for _, tc := range cases {
		got, ok := Process(p, Field{}, tc.in, tc.from, tc.to)
		if ok != tc.convert {
			t.Fatalf("%v %s->%s: ok=%v, want %v", tc.in, tc.from, tc.to, ok, tc.convert)
		}
		if ok && !value.Equal(got, tc.want) {
			t.Fatalf("%v %s->%s = %v, want %v", tc.in, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNamedStrategiesInheritDefaults(t *testing.T) {
	got := mustProcess(t, NewHex2Data(), value.Int(7), value.TypeInteger, value.TypeString)
	if !value.Equal(got, value.String("7")) {
		t.Fatalf("hex2data should inherit int->string, got %v", got)
	}
}

func TestProcessRejectsTypeMismatch(t *testing.T) {
	if _, ok := Process(Default(), Field{}, value.String("1"), value.TypeInteger, value.TypeString); ok {
		t.Fatalf("mismatched input tag must not convert")
	}
}

func TestProcessUndefinedInputRedispatchesOnlyForDefault(t *testing.T) {
	got, ok := Process(Default(), Field{}, value.Int(3), value.TypeUndefined, value.TypeString)
	if !ok || !value.Equal(got, value.String("3")) {
		t.Fatalf("default processor should re-dispatch, got %v %v", got, ok)
	}
	if _, ok := Process(NewHex2Data(), Field{}, value.Int(3), value.TypeUndefined, value.TypeString); ok {
		t.Fatalf("named processors must not re-dispatch undefined input")
	}
}

func TestTwoEntryRangeListDoublesAsBoolean(t *testing.T) {
	f := Field{Type: value.TypeString, InputType: value.TypeBool, RangeList: []value.Value{value.String("off"), value.String("on")}}
	r := NewRegistry()
	if got := r.ToSaved(f, value.Bool(true)); !value.Equal(got, value.String("on")) {
		t.Fatalf("true should save as %q, got %v", "on", got)
	}
	if got := r.ToSaved(f, value.Bool(false)); !value.Equal(got, value.String("off")) {
		t.Fatalf("false should save as %q, got %v", "off", got)
	}
	if got := r.ToInput(f, value.String("on")); !value.Equal(got, value.Bool(true)) {
		t.Fatalf("%q should read as true, got %v", "on", got)
	}
	if got := r.ToInput(f, value.String("maybe")); !value.Equal(got, value.String("maybe")) {
		t.Fatalf("unknown entries pass through, got %v", got)
	}
}

func TestRegistrySelection(t *testing.T) {
	r := NewRegistry()
	if len(r.Names()) != 10 {
		t.Fatalf("expected 10 built-in processors, got %v", r.Names())
	}

	named := Field{Type: value.TypeData, InputType: value.TypeString, Processor: Hex2Data}
	if got := r.ToSaved(named, value.String("0a0b")); !value.Equal(got, value.Data([]byte{0x0a, 0x0b})) {
		t.Fatalf("named processor not used: %v", got)
	}
	if got := r.ToInput(named, value.Data([]byte{0x0a})); !value.Equal(got, value.String("0a")) {
		t.Fatalf("named processor reverse not used: %v", got)
	}

	implicit := Field{Type: value.TypeInteger, InputType: value.TypeString}
	if got := r.ToSaved(implicit, value.String("9")); !value.Equal(got, value.Int(9)) {
		t.Fatalf("default processor not used: %v", got)
	}

	same := Field{Type: value.TypeString, InputType: value.TypeString}
	if _, ok := r.Select(same, same.InputType, same.Type); ok {
		t.Fatalf("matching types must pass through")
	}

	array := Field{Type: value.TypeArray, InputType: value.TypeString}
	if _, ok := r.Select(array, array.InputType, array.Type); ok {
		t.Fatalf("array storage without a named processor must pass through")
	}

	failed := Field{Type: value.TypeInteger, InputType: value.TypeString}
	if got := r.ToSaved(failed, value.String("nope")); !value.Equal(got, value.String("nope")) {
		t.Fatalf("failed conversion must return the raw value, got %v", got)
	}

	unknown := Field{Type: value.TypeInteger, InputType: value.TypeString, Processor: "doesNotExist"}
	if got := r.ToSaved(unknown, value.String("4")); !value.Equal(got, value.Int(4)) {
		t.Fatalf("unknown processor should fall back to default, got %v", got)
	}
}
