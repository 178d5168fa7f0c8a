package validation

import "testing"

func TestValidateHADMID(t *testing.T) {
	tests := []struct {
		name    string
		hadm    string
		wantErr bool
	}{
		{"simple", "100001", false},
		{"single digit", "1", false},
		{"max length", "123456789012", false},
		{"empty", "", true},
		{"path traversal", "../../etc/passwd", true},
		{"leading zero ok", "000123", false},
		{"non numeric", "abc123", true},
		{"negative", "-123", true},
		{"too long", "1234567890123", true},
		{"whitespace", " 123 ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHADMID(tt.hadm)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHADMID(%q) error=%v, wantErr=%v", tt.hadm, err, tt.wantErr)
			}
		})
	}
}

func TestValidateHADMIDs(t *testing.T) {
	if err := ValidateHADMIDs([]string{"1", "2", "3"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateHADMIDs([]string{"1", "bad", "3"}); err == nil {
		t.Fatalf("expected error for invalid id")
	}
}

func TestParseHADMID(t *testing.T) {
	n, err := ParseHADMID("100001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 100001 {
		t.Fatalf("got %d, want 100001", n)
	}
	if _, err := ParseHADMID("not-a-number-at-all"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateModelID(t *testing.T) {
	if err := ValidateModelID("org/medgemma-2b:q4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateModelID(""); err == nil {
		t.Fatalf("expected error for empty model id")
	}
	if err := ValidateModelID("bad model\nid"); err == nil {
		t.Fatalf("expected error for whitespace-containing model id")
	}
}

func TestValidateRunDirName(t *testing.T) {
	if err := ValidateRunDirName("20260729T120000-abcd1234"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateRunDirName("../escape"); err == nil {
		t.Fatalf("expected error for traversal")
	}
	if err := ValidateRunDirName("with/slash"); err == nil {
		t.Fatalf("expected error for path separator")
	}
}
