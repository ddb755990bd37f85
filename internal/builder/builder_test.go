package builder

import (
	"archive/tar"
	"io"
	"testing"

	"github.com/nimbusrun/fnrun/internal/domain"
)

func TestImageTagIsDeterministic(t *testing.T) {
	a := ImageTag("f1", domain.BackendStandard)
	b := ImageTag("f1", domain.BackendStandard)
	if a != b {
		t.Fatalf("ImageTag not deterministic: %q != %q", a, b)
	}
	if ImageTag("f1", domain.BackendStandard) == ImageTag("f1", domain.BackendSandbox) {
		t.Fatalf("standard and sandbox tags must differ")
	}
}

func TestBuildContextIncludesWrapperAndHandler(t *testing.T) {
	fn := &domain.Function{ID: "f1", Name: "hello", Route: "/hello", Language: domain.LanguagePython, Code: "def handler(e):\n    return e", MemoryMB: 128, TimeoutS: 10}

	r, err := buildContext(fn)
	if err != nil {
		t.Fatalf("buildContext: %v", err)
	}

	names := map[string]bool{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar read: %v", err)
		}
		names[hdr.Name] = true
	}

	for _, want := range []string{"Dockerfile", "function.py", "wrapper.py"} {
		if !names[want] {
			t.Fatalf("build context missing %q, got %v", want, names)
		}
	}
}

func TestBuildContextRejectsUnsupportedLanguage(t *testing.T) {
	fn := &domain.Function{ID: "f1", Name: "hello", Route: "/hello", Language: "ruby", Code: "x", MemoryMB: 128, TimeoutS: 10}
	if _, err := buildContext(fn); err == nil {
		t.Fatalf("expected error for unsupported language")
	}
}
