package dberror

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := New(CategoryData, CodePageCorrupt, "framing is invalid").
		WithDetail("page=7")
	err.Operation = "ReadPage"
	err.Component = "HeapFileStore"

	msg := err.Error()
	for _, part := range []string{"PAGE_CORRUPT", "framing is invalid", "page=7", "HeapFileStore.ReadPage"} {
		if !strings.Contains(msg, part) {
			t.Errorf("expected %q in %q", part, msg)
		}
	}
}

func TestErrorFormatWithoutContext(t *testing.T) {
	err := New(CategoryUser, CodeParse, "bad line")
	if got := err.Error(); got != "PARSE_ERROR: bad line" {
		t.Errorf("unexpected bare format: %q", got)
	}
}

func TestNewRecordsOrigin(t *testing.T) {
	err := New(CategorySystem, CodeStoreIO, "write failed")
	if !strings.Contains(err.Origin(), "dberror_test.go:") {
		t.Errorf("expected origin at the construction site, got %q", err.Origin())
	}
}

func TestWrapPreservesExistingError(t *testing.T) {
	inner := New(CategorySystem, CodeHeapFull, "no space")
	wrapped := Wrap(inner, CodeBPlusTree, "Insert", "BPlusTree")

	if wrapped.Code != CodeHeapFull {
		t.Errorf("wrap replaced the code: %s", wrapped.Code)
	}
	if wrapped.Operation != "Insert" || wrapped.Component != "BPlusTree" {
		t.Errorf("wrap did not attach context: %+v", wrapped)
	}

	// Context set at the failure site wins over later wraps.
	again := Wrap(wrapped, CodeStoreIO, "Other", "Elsewhere")
	if again.Operation != "Insert" {
		t.Errorf("second wrap overwrote operation: %s", again.Operation)
	}
}

func TestWrapFindsBuriedDBError(t *testing.T) {
	inner := New(CategoryData, CodeNodeNotFound, "gone")
	buried := fmt.Errorf("while descending: %w", inner)

	wrapped := Wrap(buried, CodeBPlusTree, "Search", "BPlusTree")
	if wrapped.Code != CodeNodeNotFound {
		t.Errorf("wrap missed the buried DBError: %s", wrapped.Code)
	}
}

func TestWrapForeignError(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	wrapped := Wrap(cause, CodeStoreIO, "WritePage", "HeapFileStore")

	if wrapped.Code != CodeStoreIO {
		t.Errorf("expected STORE_IO, got %s", wrapped.Code)
	}
	if wrapped.Category != CategorySystem {
		t.Errorf("expected system category, got %v", wrapped.Category)
	}
	if !errors.Is(wrapped, cause) {
		t.Errorf("cause not reachable through Unwrap")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, CodeStoreIO, "op", "comp") != nil {
		t.Errorf("expected nil for nil error")
	}
}

func TestHasCode(t *testing.T) {
	err := New(CategoryUser, CodeParse, "bad line")
	if !HasCode(err, CodeParse) {
		t.Errorf("expected HasCode to match")
	}
	if HasCode(err, CodeHeapFull) {
		t.Errorf("expected HasCode to reject other codes")
	}
	if HasCode(fmt.Errorf("plain"), CodeParse) {
		t.Errorf("expected HasCode to reject foreign errors")
	}

	// The chain is searched, not just the outermost error.
	buried := fmt.Errorf("outer: %w", err)
	if !HasCode(buried, CodeParse) {
		t.Errorf("expected HasCode to search the chain")
	}
}

func TestCategoryString(t *testing.T) {
	cases := map[Category]string{
		CategoryUser:      "user",
		CategoryTransient: "transient",
		CategorySystem:    "system",
		CategoryData:      "data",
	}
	for category, want := range cases {
		if category.String() != want {
			t.Errorf("Category(%d).String() = %q, want %q", int(category), category.String(), want)
		}
	}
}
