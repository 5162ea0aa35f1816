package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"jinxcore/internal/text"
)

// cat joins byte fragments for readable expectations.
func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func mcString(s string) []byte { return append([]byte{byte(len(s))}, s...) }

func nbtString(name, value string) []byte {
	return cat([]byte{tagString, 0, byte(len(name))}, []byte(name), []byte{0, byte(len(value))}, []byte(value))
}

func TestRemoveObjectiveLayout(t *testing.T) {
	got, err := Marshal(RemoveObjective("jinx_sidebar"))
	if err != nil {
		t.Fatal(err)
	}
	want := cat([]byte{0x64}, mcString("jinx_sidebar"), []byte{byte(ModeRemove)})
	if !bytes.Equal(got, want) {
		t.Errorf("remove packet = % x, want % x", got, want)
	}
}

func TestAddObjectiveLayout(t *testing.T) {
	pkt := AddObjective("jinx_sidebar", ObjectiveDisplay{
		Title:  text.StyledText{{Text: "Status"}},
		Render: RenderInteger,
	})
	got, err := Marshal(pkt)
	if err != nil {
		t.Fatal(err)
	}

	title := cat(
		[]byte{tagCompound},
		nbtString("text", ""),
		[]byte{tagList, 0, 5}, []byte("extra"), []byte{tagCompound, 0, 0, 0, 1},
		nbtString("text", "Status"), []byte{tagEnd},
		[]byte{tagEnd},
	)
	want := cat(
		[]byte{0x64},
		mcString("jinx_sidebar"),
		[]byte{byte(ModeAdd)},
		title,
		[]byte{0x00}, // render type integer
		[]byte{0x00}, // no number format
	)
	if !bytes.Equal(got, want) {
		t.Errorf("add packet =\n% x\nwant\n% x", got, want)
	}
}

func TestUpdateObjectiveUsesModeTwo(t *testing.T) {
	got, err := Marshal(UpdateObjective("o", ObjectiveDisplay{}))
	if err != nil {
		t.Fatal(err)
	}
	// id, name, mode
	if got[0] != 0x64 || got[3] != byte(ModeUpdate) {
		t.Errorf("update header = % x", got[:4])
	}
	// empty title: compound{text:""} then render and format
	wantTail := cat([]byte{tagCompound}, nbtString("text", ""), []byte{tagEnd, 0x00, 0x00})
	if !bytes.Equal(got[4:], wantTail) {
		t.Errorf("update body = % x, want % x", got[4:], wantTail)
	}
}

func TestDisplayObjectiveLayout(t *testing.T) {
	got, err := Marshal(DisplayObjectivePacket{Slot: SlotSidebar, Objective: "jinx_sidebar"})
	if err != nil {
		t.Fatal(err)
	}
	want := cat([]byte{0x5c, 0x01}, mcString("jinx_sidebar"))
	if !bytes.Equal(got, want) {
		t.Errorf("display packet = % x, want % x", got, want)
	}
}

func TestScoreLayout(t *testing.T) {
	display := text.StyledText{{Text: "Online: 3", Color: text.Green, Colored: true}}
	got, err := Marshal(ScorePacket{
		Entry:       "line_0",
		Objective:   "jinx_sidebar",
		Score:       3,
		DisplayName: &display,
	})
	if err != nil {
		t.Fatal(err)
	}
	component := cat(
		[]byte{tagCompound},
		nbtString("text", ""),
		[]byte{tagList, 0, 5}, []byte("extra"), []byte{tagCompound, 0, 0, 0, 1},
		nbtString("text", "Online: 3"), nbtString("color", "green"), []byte{tagEnd},
		[]byte{tagEnd},
	)
	want := cat(
		[]byte{0x68},
		mcString("line_0"),
		mcString("jinx_sidebar"),
		[]byte{0x03},
		[]byte{0x01}, component,
		[]byte{0x00},
	)
	if !bytes.Equal(got, want) {
		t.Errorf("score packet =\n% x\nwant\n% x", got, want)
	}
}

func TestScoreWithoutDisplayName(t *testing.T) {
	got, err := Marshal(ScorePacket{Entry: "e", Objective: "o", Score: -1})
	if err != nil {
		t.Fatal(err)
	}
	want := cat([]byte{0x68}, mcString("e"), mcString("o"), []byte{0xff, 0xff, 0xff, 0xff, 0x0f, 0x00, 0x00})
	if !bytes.Equal(got, want) {
		t.Errorf("score packet = % x, want % x", got, want)
	}
}

func TestNumberFormats(t *testing.T) {
	tests := []struct {
		name   string
		format NumberFormat
		want   []byte
	}{
		{"blank", BlankFormat{}, []byte{0x01, 0x00}},
		{"styled", StyledFormat{Color: text.Red, Colored: true},
			cat([]byte{0x01, 0x01, tagCompound}, nbtString("color", "red"), []byte{tagEnd})},
		{"fixed", FixedFormat{Text: text.StyledText{{Text: "-"}}},
			cat([]byte{0x01, 0x02, tagCompound}, nbtString("text", ""),
				[]byte{tagList, 0, 5}, []byte("extra"), []byte{tagCompound, 0, 0, 0, 1},
				nbtString("text", "-"), []byte{tagEnd}, []byte{tagEnd})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter()
			if err := writeNumberFormat(w, tt.format); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(w.Bytes(), tt.want) {
				t.Fatalf("format bytes = % x, want % x", w.Bytes(), tt.want)
			}
			back, err := readNumberFormat(NewReader(w.Bytes()))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(back, tt.format) {
				t.Errorf("decoded %#v, want %#v", back, tt.format)
			}
		})
	}
}

// TestUnmarshalRoundTrip decodes each packet kind as a client would.
func TestUnmarshalRoundTrip(t *testing.T) {
	title := text.Parse("&6Jinx&fCore")
	line := text.Parse("TPS: &a19.87")

	packets := []Packet{
		AddObjective("jinx_sidebar", ObjectiveDisplay{Title: title, Render: RenderInteger}),
		UpdateObjective("jinx_sidebar", ObjectiveDisplay{Title: title, Render: RenderHearts, Format: BlankFormat{}}),
		RemoveObjective("jinx_sidebar"),
		DisplayObjectivePacket{Slot: SlotSidebar, Objective: "jinx_sidebar"},
		ScorePacket{Entry: "line_1", Objective: "jinx_sidebar", Score: 2, DisplayName: &line},
	}

	for _, want := range packets {
		b, err := Marshal(want)
		if err != nil {
			t.Fatalf("Marshal(%T): %v", want, err)
		}
		got, err := Unmarshal(b)
		if err != nil {
			t.Fatalf("Unmarshal(%T): %v", want, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip %T:\n got %#v\nwant %#v", want, got, want)
		}
	}
}

func TestUnmarshalErrors(t *testing.T) {
	if _, err := Unmarshal([]byte{0x01}); !errors.Is(err, ErrUnknownPacket) {
		t.Errorf("unknown id: got %v", err)
	}

	b, _ := Marshal(RemoveObjective("x"))
	if _, err := Unmarshal(append(b, 0x00)); !errors.Is(err, ErrTrailingBytes) {
		t.Errorf("trailing byte: got %v", err)
	}
	if _, err := Unmarshal(b[:len(b)-1]); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("truncated: got %v", err)
	}

	bad := cat([]byte{0x64}, mcString("x"), []byte{0x07})
	if _, err := Unmarshal(bad); err == nil {
		t.Error("expected error for unknown objective mode")
	}
}

// TestReadTextComponentVariants covers component shapes other servers send:
// bare string roots, nested extras with inherited color and unknown keys.
func TestReadTextComponentVariants(t *testing.T) {
	t.Run("string root", func(t *testing.T) {
		b := cat([]byte{tagString, 0, 2}, []byte("hi"))
		got, err := NewReader(b).ReadTextComponent()
		if err != nil {
			t.Fatal(err)
		}
		if want := (text.StyledText{{Text: "hi"}}); !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("nested with inherited color", func(t *testing.T) {
		b := cat(
			[]byte{tagCompound},
			nbtString("text", "A"),
			nbtString("color", "gold"),
			[]byte{tagByte, 0, 6}, []byte("italic"), []byte{1},
			[]byte{tagList, 0, 5}, []byte("extra"), []byte{tagString, 0, 0, 0, 1},
			[]byte{0, 1, 'B'},
			[]byte{tagEnd},
		)
		got, err := NewReader(b).ReadTextComponent()
		if err != nil {
			t.Fatal(err)
		}
		want := text.StyledText{
			{Text: "A", Color: text.Gold, Colored: true},
			{Text: "B", Color: text.Gold, Colored: true},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})
}

func TestReadTextComponentTruncated(t *testing.T) {
	w := NewWriter()
	if err := w.WriteTextComponent(text.Parse("&aOnline")); err != nil {
		t.Fatal(err)
	}
	b := w.Bytes()
	if _, err := NewReader(b[:len(b)-2]).ReadTextComponent(); err == nil {
		t.Error("expected error for truncated component")
	}
	if _, err := NewReader([]byte{tagByte, 1}).ReadTextComponent(); !errors.Is(err, ErrMalformedNBT) {
		t.Errorf("byte root: got %v, want ErrMalformedNBT", err)
	}
}
