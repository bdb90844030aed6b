package storage

import "testing"

func TestPersonalizationPath(t *testing.T) {
	got, err := PersonalizationPath("ord_01H", 2, "uploads/tmp/photo.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "orders/ord_01H/personalization/2-photo.png" {
		t.Fatalf("unexpected path %s", got)
	}

	if _, err := PersonalizationPath("../x", 0, "a.png"); err == nil {
		t.Fatalf("expected traversal in order id to be rejected")
	}
	if _, err := PersonalizationPath("ord_1", 0, " "); err == nil {
		t.Fatalf("expected empty file name to be rejected")
	}
}

func TestParseObjectRef(t *testing.T) {
	ref, err := ParseObjectRef("gs://glass-uploads/tmp/a.png", "")
	if err != nil || ref.Bucket != "glass-uploads" || ref.Object != "tmp/a.png" {
		t.Fatalf("unexpected ref %+v err=%v", ref, err)
	}

	ref, err = ParseObjectRef("/tmp/b.png", "glass-uploads")
	if err != nil || ref.String() != "gs://glass-uploads/tmp/b.png" {
		t.Fatalf("unexpected bare ref %+v err=%v", ref, err)
	}

	for _, value := range []string{"", "gs://bucket", "tmp/a.png", "gs://b/../x"} {
		if _, err := ParseObjectRef(value, ""); err == nil {
			t.Fatalf("expected %q to be rejected", value)
		}
	}
}
