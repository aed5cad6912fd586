package store

import (
	"errors"
	"testing"
)

func validRecord() *Record {
	return &Record{
		FailedAttempts: 3,
		LastAttempt:    1_700_000_300_000,
		LockoutUntil:   0,
		CreatedAt:      1_700_000_000_000,
		UpdatedAt:      1_700_000_300_000,
	}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	rec := validRecord()
	data, err := EncodeRecord(rec)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.FailedAttempts != rec.FailedAttempts || got.LastAttempt != rec.LastAttempt ||
		got.CreatedAt != rec.CreatedAt || got.UpdatedAt != rec.UpdatedAt {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if got.Version != SchemaVersion {
		t.Fatalf("encode must stamp the schema version, got %d", got.Version)
	}
}

func TestEncodeRecordNil(t *testing.T) {
	if _, err := EncodeRecord(nil); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
}

func TestDecodeRecordRejectsUntrustedPayloads(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"truncated json", `{"failedAttempts": 3, "lastAtt`},
		{"not json", "hello world"},
		{"wrong type", `{"failedAttempts": "three", "createdAt": 1, "updatedAt": 1, "version": 1}`},
		{"missing version", `{"failedAttempts": 1, "createdAt": 1, "updatedAt": 1}`},
		{"future version", `{"failedAttempts": 1, "createdAt": 1, "updatedAt": 1, "version": 2}`},
		{"negative attempts", `{"failedAttempts": -1, "createdAt": 1, "updatedAt": 1, "version": 1}`},
		{"negative timestamp", `{"failedAttempts": 1, "lastAttempt": -5, "createdAt": 1, "updatedAt": 1, "version": 1}`},
		{"negative lockout", `{"failedAttempts": 1, "lockoutUntil": -1, "createdAt": 1, "updatedAt": 1, "version": 1}`},
		{"zero createdAt", `{"failedAttempts": 1, "createdAt": 0, "updatedAt": 1, "version": 1}`},
		{"zero updatedAt", `{"failedAttempts": 1, "createdAt": 1, "updatedAt": 0, "version": 1}`},
		{"json null", "null"},
		{"json array", "[]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := DecodeRecord([]byte(tc.data))
			if !errors.Is(err, ErrCorruptRecord) {
				t.Fatalf("expected ErrCorruptRecord, got %v (rec %+v)", err, rec)
			}
			if rec != nil {
				t.Fatal("rejected payloads must not yield a partial record")
			}
		})
	}
}

func TestRecordClone(t *testing.T) {
	var nilRec *Record
	if nilRec.Clone() != nil {
		t.Fatal("nil record must clone to nil")
	}

	rec := validRecord()
	clone := rec.Clone()
	clone.FailedAttempts = 99
	if rec.FailedAttempts == 99 {
		t.Fatal("clone must not share state with the original")
	}
}

func FuzzDecodeRecord(f *testing.F) {
	valid, _ := EncodeRecord(validRecord())
	f.Add(valid)
	f.Add([]byte(`{"failedAttempts": 1, "createdAt": 1, "updatedAt": 1, "version": 1}`))
	f.Add([]byte(""))
	f.Add([]byte("null"))
	f.Add([]byte(`{"version": 1}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		rec, err := DecodeRecord(data)
		if err != nil {
			if rec != nil {
				t.Fatal("error result must carry a nil record")
			}
			if !errors.Is(err, ErrCorruptRecord) {
				t.Fatalf("every decode failure must wrap ErrCorruptRecord, got %v", err)
			}
			return
		}
		if rec.Version != SchemaVersion {
			t.Fatalf("accepted record with version %d", rec.Version)
		}
		if rec.FailedAttempts < 0 || rec.CreatedAt <= 0 || rec.UpdatedAt <= 0 {
			t.Fatalf("accepted invalid record %+v", rec)
		}
	})
}
