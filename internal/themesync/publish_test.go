package themesync_test

import (
	"context"
	"errors"
	"testing"

	"themesync/internal/themesync"
)

func TestService_Publish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.scanner.SetFile("nordic", "a.css", []byte("one"))
	first := f.sync(t, "nordic")
	f.scanner.SetFile("nordic", "a.css", []byte("two"))
	second := f.sync(t, "nordic")

	v, err := f.svc.Publish(ctx, "nordic", first.VersionID, actor)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !v.IsLive || v.PublishedAt == nil {
		t.Errorf("published version = %+v", v)
	}

	if _, err := f.svc.Publish(ctx, "nordic", second.VersionID, actor); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	live := 0
	for _, v := range f.versions(t, "nordic") {
		if v.IsLive {
			live++
			if v.ID != second.VersionID {
				t.Errorf("live version = %s, want %s", v.Label, second.VersionLabel)
			}
		}
	}
	if live != 1 {
		t.Errorf("%d live versions, want 1", live)
	}
}

func TestService_Preview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.scanner.SetFile("nordic", "a.css", []byte("one"))
	first := f.sync(t, "nordic")
	f.scanner.SetFile("nordic", "a.css", []byte("two"))
	second := f.sync(t, "nordic")

	if _, err := f.svc.Publish(ctx, "nordic", first.VersionID, actor); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	v, err := f.svc.Preview(ctx, "nordic", second.VersionID, actor)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if !v.IsPreview || v.IsLive {
		t.Errorf("preview version = %+v", v)
	}

	for _, v := range f.versions(t, "nordic") {
		if v.ID == first.VersionID && (!v.IsLive || v.IsPreview) {
			t.Errorf("first version = %+v, want live and not preview", v)
		}
	}
}

func TestService_Publish_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.scanner.SetFile("nordic", "a.css", []byte("a"))
	f.scanner.SetFile("dawn", "a.css", []byte("b"))
	nordic := f.sync(t, "nordic")
	f.sync(t, "dawn")

	if _, err := f.svc.Publish(ctx, "dawn", nordic.VersionID, actor); !errors.Is(err, themesync.ErrNotFound) {
		t.Errorf("Publish() cross-theme error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Publish(ctx, "nordic", "no-such-id", actor); !errors.Is(err, themesync.ErrNotFound) {
		t.Errorf("Publish() unknown version error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Preview(ctx, "nordic", nordic.VersionID, ""); !errors.Is(err, themesync.ErrValidation) {
		t.Errorf("Preview() empty actor error = %v, want ErrValidation", err)
	}
}
