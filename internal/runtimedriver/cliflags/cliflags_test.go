package cliflags

import (
	"reflect"
	"testing"
)

func TestToArgsPipInstallOptions(t *testing.T) {
	opts := PipInstallOptions{IndexURL: "https://pypi.example/simple", NoCacheDir: true, Requirement: "requirements.txt"}
	got := ToArgs(&opts)
	want := []string{"--index-url", "https://pypi.example/simple", "--no-cache-dir", "-r", "requirements.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToArgs = %v, want %v", got, want)
	}
}

func TestToArgsSkipsZeroFields(t *testing.T) {
	opts := NpmInstallOptions{Registry: "https://registry.npmjs.org"}
	got := ToArgs(&opts)
	want := []string{"--registry", "https://registry.npmjs.org"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToArgs = %v, want %v", got, want)
	}
}

func TestToArgsEmptyStructReturnsNil(t *testing.T) {
	opts := NpmInstallOptions{}
	if got := ToArgs(&opts); got != nil {
		t.Errorf("ToArgs = %v, want nil", got)
	}
}
