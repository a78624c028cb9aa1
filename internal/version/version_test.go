package version

import "testing"

func TestIsNewerFirmware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		candidate string
		marker    string
		want      bool
	}{
		{name: "empty marker", candidate: "G991BXXU5CVLL", marker: "", want: true},
		{name: "short marker", candidate: "G991BXXU5CVLL", marker: "abc", want: true},
		{name: "short candidate", candidate: "U1A", marker: "U1AB", want: false},
		{name: "both short", candidate: "x", marker: "", want: true},
		{name: "newer minor", candidate: "U1AC", marker: "U1AB", want: true},
		{name: "older minor", candidate: "U1AA", marker: "U1AB", want: false},
		{name: "equal", candidate: "U1AB", marker: "U1AB", want: false},
		{name: "newer magnitude", candidate: "U2AA", marker: "U1AZ", want: true},
		{name: "older magnitude", candidate: "U1AZ", marker: "U2AA", want: false},
		{name: "later bootloader", candidate: "G991BXXU6DVLL", marker: "G991BXXU5CVLL", want: true},
		// Year rollover lowers the sum: W+A is below V+L.
		{name: "year rollover reads older", candidate: "G991BXXU5CWA1", marker: "G991BXXU5CVLL", want: false},
		// A,C and B,B sum alike; only the last character decides.
		{name: "equal sum newer minor", candidate: "XBBD", marker: "XACC", want: true},
		{name: "equal sum older minor", candidate: "XBBB", marker: "XACC", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsNewerFirmware(tt.candidate, tt.marker); got != tt.want {
				t.Errorf("IsNewerFirmware(%q, %q) = %v, want %v", tt.candidate, tt.marker, got, tt.want)
			}
		})
	}
}

func TestIsNewerKernel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		candidate string
		marker    string
		want      bool
	}{
		{name: "empty marker", candidate: "1234", marker: "", want: true},
		{name: "short candidate", candidate: "123", marker: "1234", want: false},
		{name: "newer minor", candidate: "1235", marker: "1234", want: true},
		{name: "major wins over rest", candidate: "2000", marker: "1999", want: true},
		{name: "older major", candidate: "1999", marker: "2000", want: false},
		{name: "date1 decides", candidate: "1300", marker: "1299", want: true},
		{name: "date2 decides", candidate: "1240", marker: "1239", want: true},
		{name: "equal", candidate: "G991BXXU5CVLL", marker: "G991BXXU5CVLL", want: false},
		// Equal sums are not equivalent under the kernel policy.
		{name: "positional not summed", candidate: "XBBD", marker: "XACC", want: true},
		{name: "positional older", candidate: "XACZ", marker: "XBBA", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsNewerKernel(tt.candidate, tt.marker); got != tt.want {
				t.Errorf("IsNewerKernel(%q, %q) = %v, want %v", tt.candidate, tt.marker, got, tt.want)
			}
		})
	}
}

func TestDecodeFirmware(t *testing.T) {
	got, ok := DecodeFirmware("U1AB")
	if !ok {
		t.Fatal("DecodeFirmware() ok = false, want true")
	}
	want := FirmwareVersion{Magnitude: 'U' + '1' + 'A', Minor: 'B'}
	if got != want {
		t.Errorf("DecodeFirmware() = %+v, want %+v", got, want)
	}

	if _, ok := DecodeFirmware("U1A"); ok {
		t.Error("DecodeFirmware(short) ok = true, want false")
	}
}

func TestDecodeKernel(t *testing.T) {
	got, ok := DecodeKernel("G991BXXU5CVLL")
	if !ok {
		t.Fatal("DecodeKernel() ok = false, want true")
	}
	want := KernelVersion{Major: 'C', Date1: 'V', Date2: 'L', Minor: 'L'}
	if got != want {
		t.Errorf("DecodeKernel() = %+v, want %+v", got, want)
	}
}

func TestIsNewer_Irreflexive(t *testing.T) {
	for _, v := range []string{"", "abc", "U1AB", "G991BXXU5CVLL"} {
		if len(v) >= windowLen && IsNewerFirmware(v, v) {
			t.Errorf("IsNewerFirmware(%q, %q) = true", v, v)
		}
		if len(v) >= windowLen && IsNewerKernel(v, v) {
			t.Errorf("IsNewerKernel(%q, %q) = true", v, v)
		}
	}
}
