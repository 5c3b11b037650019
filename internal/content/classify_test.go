package content

import (
	"bytes"
	"strings"
	"testing"
)

func validPDF() []byte {
	return append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("x"), 200)...)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want Type
	}{
		{name: "empty", data: nil, want: TypeUnknown},
		{name: "html", data: []byte("<!DOCTYPE html><html><body>hi</body></html>"), want: TypeHTML},
		{name: "html fragment", data: []byte("<html>ok</html>"), want: TypeHTML},
		{name: "pdf", data: validPDF(), want: TypePDF},
		{name: "plain text", data: []byte("just some words with no markup at all"), want: TypeOther},
		{name: "binary junk", data: []byte{0x00, 0x01, 0x02, 0x03, 0xff, 0xfe}, want: TypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.data); got != tt.want {
				t.Fatalf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsValidPDF(t *testing.T) {
	t.Parallel()

	if !IsValidPDF(validPDF(), TypePDF) {
		t.Fatal("expected valid PDF to pass")
	}
	// Valid signature but under the size floor.
	if IsValidPDF([]byte("%PDF-1.4 tiny"), TypePDF) {
		t.Fatal("expected short PDF to be rejected")
	}
	// Right size, wrong signature.
	if IsValidPDF(bytes.Repeat([]byte("a"), 500), TypePDF) {
		t.Fatal("expected unsigned payload to be rejected")
	}
	// Declared type must be pdf.
	if IsValidPDF(validPDF(), TypeHTML) {
		t.Fatal("expected non-pdf declared type to be rejected")
	}
}

func TestIsSoftBlocked(t *testing.T) {
	t.Parallel()

	for _, fp := range softBlockFingerprints {
		body := []byte("<html><body>" + fp + "</body></html>")
		if !IsSoftBlocked(body, TypeHTML) {
			t.Fatalf("fingerprint %q not detected", fp)
		}
	}

	if IsSoftBlocked([]byte("<html><body>a perfectly normal article page</body></html>"), TypeHTML) {
		t.Fatal("generic HTML flagged as soft block")
	}

	// PDFs are never soft blocks even if bytes happen to contain a fingerprint.
	pdf := append(validPDF(), []byte("ShieldSquare Captcha")...)
	if IsSoftBlocked(pdf, TypePDF) {
		t.Fatal("pdf flagged as soft block")
	}
}

func TestFingerprintsAreNonEmpty(t *testing.T) {
	t.Parallel()

	// Guard against accidentally empty entries which would match everything.
	for _, fp := range softBlockFingerprints {
		if strings.TrimSpace(fp) == "" {
			t.Fatal("empty soft-block fingerprint")
		}
	}
}
