package processor

import (
	"encoding/base64"
	"encoding/hex"
	"path"
	"sort"
	"strings"
	"time"

	"profilepayloads/internal/value"
)

const (
	Hex2Data                       = "hex2data"
	Base642Data                    = "base642data"
	DesignatedCodeRequirement2Data = "designatedCodeRequirement2Data"
	Plist2Dict                     = "plist2dict"
	WeekdaysBitmask2Int            = "weekdaysBitmask2Int"
	Time2Minutes                   = "time2minutes"
	X5002SubjectArray              = "x5002subjectArray"
	DockTileType                   = "dockTileType"
	DockTilePathType               = "dockTilePathType"
	DockTileLabel                  = "dockTileLabel"
)

func none() (value.Value, bool) { return value.Undefined(), false }

// NewHex2Data reads hex strings into bytes, skipping non-hex characters and
// a trailing odd nibble. Bytes render as lowercase hex.
func NewHex2Data() Processor {
	return New(Hex2Data, Table{
		{value.TypeString, value.TypeData}: func(v value.Value) (value.Value, bool) {
			s, _ := v.AsString()
			digits := make([]byte, 0, len(s))
			for i := 0; i < len(s); i++ {
				if strings.IndexByte("0123456789abcdefABCDEF", s[i]) >= 0 {
					digits = append(digits, s[i])
				}
			}
			if len(digits)%2 == 1 {
				digits = digits[:len(digits)-1]
			}
			out := make([]byte, len(digits)/2)
			if _, err := hex.Decode(out, digits); err != nil {
				return none()
			}
			return value.Data(out), true
		},
		{value.TypeData, value.TypeString}: func(v value.Value) (value.Value, bool) {
			b, _ := v.AsData()
			return value.String(hex.EncodeToString(b)), true
		},
	})
}

// NewBase642Data decodes standard base64, ignoring characters outside the
// alphabet.
func NewBase642Data() Processor {
	return New(Base642Data, Table{
		{value.TypeString, value.TypeData}: func(v value.Value) (value.Value, bool) {
			s, _ := v.AsString()
			clean := strings.Map(func(r rune) rune {
				switch {
				case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/', r == '=':
					return r
				}
				return -1
			}, s)
			out, err := base64.StdEncoding.DecodeString(clean)
			if err != nil {
				return none()
			}
			return value.Data(out), true
		},
		{value.TypeData, value.TypeString}: func(v value.Value) (value.Value, bool) {
			b, _ := v.AsData()
			return value.String(base64.StdEncoding.EncodeToString(b)), true
		},
	})
}

// NewPlist2Dict reads embedded property lists of any plist encoding.
func NewPlist2Dict() Processor {
	return New(Plist2Dict, Table{
		{value.TypeData, value.TypeDictionary}: func(v value.Value) (value.Value, bool) {
			b, _ := v.AsData()
			return decodePlistDictionary(b)
		},
	})
}

// NewWeekdaysBitmask2Int splits a bitmask into its sorted power-of-two
// components and sums them back.
func NewWeekdaysBitmask2Int() Processor {
	return New(WeekdaysBitmask2Int, Table{
		{value.TypeInteger, value.TypeArray}: func(v value.Value) (value.Value, bool) {
			mask, _ := v.AsInt()
			var parts []value.Value
			for bit := int64(1); mask > 0; bit <<= 1 {
				if mask&1 == 1 {
					parts = append(parts, value.Int(bit))
				}
				mask >>= 1
			}
			return value.Array(parts...), true
		},
		{value.TypeArray, value.TypeInteger}: func(v value.Value) (value.Value, bool) {
			items, _ := v.AsArray()
			var sum int64
			for _, item := range items {
				i, ok := item.AsInt()
				if !ok {
					return none()
				}
				sum += i
			}
			return value.Int(sum), true
		},
	})
}

// NewTime2Minutes maps a time of day to minutes past midnight in loc.
// The integer direction anchors on the current day from now.
func NewTime2Minutes(now func() time.Time, loc *time.Location) Processor {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	midnight := func(t time.Time) time.Time {
		t = t.In(loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
	return New(Time2Minutes, Table{
		{value.TypeDate, value.TypeInteger}: func(v value.Value) (value.Value, bool) {
			t, _ := v.AsDate()
			return value.Int(int64(t.Sub(midnight(t)) / time.Minute)), true
		},
		{value.TypeInteger, value.TypeDate}: func(v value.Value) (value.Value, bool) {
			minutes, _ := v.AsInt()
			return value.Date(midnight(now()).Add(time.Duration(minutes) * time.Minute)), true
		},
	})
}

// NewX5002SubjectArray converts "CN=a,O=b" into [[["CN","a"]],[["O","b"]]].
func NewX5002SubjectArray() Processor {
	return New(X5002SubjectArray, Table{
		{value.TypeString, value.TypeArray}: func(v value.Value) (value.Value, bool) {
			s, _ := v.AsString()
			var out []value.Value
			for _, rdn := range strings.Split(s, ",") {
				out = append(out, value.Array(value.Strings(strings.Split(rdn, "=")...)))
			}
			return value.Array(out...), true
		},
		{value.TypeArray, value.TypeString}: func(v value.Value) (value.Value, bool) {
			outer, _ := v.AsArray()
			var parts []string
			for _, rdn := range outer {
				pairs, ok := rdn.AsArray()
				if !ok {
					return none()
				}
				for _, pair := range pairs {
					items, ok := pair.AsStrings()
					if !ok {
						return none()
					}
					switch {
					case len(items) >= 2:
						parts = append(parts, items[0]+"="+items[1])
					case len(items) == 1:
						parts = append(parts, items[0])
					default:
						parts = append(parts, "")
					}
				}
			}
			return value.String(strings.Join(parts, ",")), true
		},
	})
}

var dockTileTypes = map[int64]string{1: "file-tile", 2: "url-tile", 3: "directory-tile"}

func NewDockTileType() Processor {
	return New(DockTileType, Table{
		{value.TypeInteger, value.TypeString}: func(v value.Value) (value.Value, bool) {
			i, _ := v.AsInt()
			if name, ok := dockTileTypes[i]; ok {
				return value.String(name), true
			}
			return none()
		},
		{value.TypeString, value.TypeInteger}: func(v value.Value) (value.Value, bool) {
			s, _ := v.AsString()
			for i, name := range dockTileTypes {
				if name == s {
					return value.Int(i), true
				}
			}
			return none()
		},
	})
}

// NewDockTilePathType maps 0 to a filesystem path and 15 to a URL.
func NewDockTilePathType() Processor {
	return New(DockTilePathType, Table{
		{value.TypeInteger, value.TypeString}: func(v value.Value) (value.Value, bool) {
			switch i, _ := v.AsInt(); i {
			case 0:
				return value.String("/"), true
			case 15:
				return value.String("file://"), true
			}
			return none()
		},
		{value.TypeString, value.TypeInteger}: func(v value.Value) (value.Value, bool) {
			s, _ := v.AsString()
			switch {
			case strings.HasPrefix(s, "/"):
				return value.Int(0), true
			case strings.Contains(s, "://"):
				return value.Int(15), true
			}
			return none()
		},
	})
}

// NewDockTileLabel derives a label from a path: its last component without
// an ".app" extension.
func NewDockTileLabel() Processor {
	return New(DockTileLabel, Table{
		{value.TypeString, value.TypeString}: func(v value.Value) (value.Value, bool) {
			s, _ := v.AsString()
			if s == "" {
				return none()
			}
			base := path.Base(s)
			if path.Ext(base) == ".app" {
				base = strings.TrimSuffix(base, ".app")
			}
			return value.String(base), true
		},
	})
}

// RequirementConverter compiles code-signing requirement text to its binary
// form and back. Hosts supply it; the library ships none.
type RequirementConverter interface {
	RequirementData(text string) ([]byte, error)
	RequirementString(data []byte) (string, error)
}

// NewDesignatedCodeRequirement2Data converts through conv. Without a
// converter both directions report no conversion.
func NewDesignatedCodeRequirement2Data(conv RequirementConverter) Processor {
	return New(DesignatedCodeRequirement2Data, Table{
		{value.TypeString, value.TypeData}: func(v value.Value) (value.Value, bool) {
			if conv == nil {
				return none()
			}
			s, _ := v.AsString()
			b, err := conv.RequirementData(s)
			if err != nil {
				return none()
			}
			return value.Data(b), true
		},
		{value.TypeData, value.TypeString}: func(v value.Value) (value.Value, bool) {
			if conv == nil {
				return none()
			}
			b, _ := v.AsData()
			s, err := conv.RequirementString(b)
			if err != nil {
				return none()
			}
			return value.String(s), true
		},
	})
}

// builtins returns every named strategy, sorted by name.
func builtins(conv RequirementConverter, now func() time.Time, loc *time.Location) []Processor {
	list := []Processor{
		NewHex2Data(),
		NewBase642Data(),
		NewDesignatedCodeRequirement2Data(conv),
		NewPlist2Dict(),
		NewWeekdaysBitmask2Int(),
		NewTime2Minutes(now, loc),
		NewX5002SubjectArray(),
		NewDockTileType(),
		NewDockTilePathType(),
		NewDockTileLabel(),
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}
