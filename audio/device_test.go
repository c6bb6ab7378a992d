package audio

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// keys delivers one keypress per Read, like a raw terminal.
type keys [][]byte

func (k *keys) Read(p []byte) (int, error) {
	if len(*k) == 0 {
		return 0, io.EOF
	}
	n := copy(p, (*k)[0])
	*k = (*k)[1:]
	return n, nil
}

var pickDevices = []DeviceInfo{{Name: "Built-in"}, {Name: "USB Mic"}, {Name: "AirPods Pro"}}

func TestPickArrowsAndEnter(t *testing.T) {
	in := &keys{{0x1b, '[', 'B'}, {0x1b, '[', 'B'}, {0x1b, '[', 'B'}, {0x1b, '[', 'A'}, {'\r'}}
	var out bytes.Buffer
	d, err := pick(in, &out, pickDevices)
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "USB Mic" {
		t.Errorf("picked %q", d.Name)
	}
	if !strings.Contains(out.String(), "lower audio quality") {
		t.Error("bluetooth device not flagged")
	}
}

func TestPickVimKeys(t *testing.T) {
	in := &keys{{'k'}, {'j'}, {'j'}, {'\n'}}
	d, err := pick(in, io.Discard, pickDevices)
	if err != nil || d.Name != "AirPods Pro" {
		t.Fatalf("pick = %v, %v", d, err)
	}
}

func TestPickCancel(t *testing.T) {
	for _, key := range [][]byte{{3}, {'q'}} {
		in := &keys{{'j'}, key}
		if _, err := pick(in, io.Discard, pickDevices); !errors.Is(err, ErrPickCanceled) {
			t.Errorf("key %v: got %v, want ErrPickCanceled", key, err)
		}
	}
	if _, err := pick(&keys{}, io.Discard, pickDevices); err == nil {
		t.Error("expected error at end of input")
	}
}

func TestFindDevice(t *testing.T) {
	ctx := NewFakeContextPCM(nil, 16000, false)
	d, err := FindDevice(ctx, "FA")
	if err != nil || d == nil || d.Name != "fake" {
		t.Fatalf("FindDevice = %v, %v", d, err)
	}
	if d, err := FindDevice(ctx, " "); d != nil || err != nil {
		t.Errorf("blank name = %v, %v", d, err)
	}
	if _, err := FindDevice(ctx, "usb"); err == nil {
		t.Error("expected not found")
	}
}
