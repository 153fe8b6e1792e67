package catalog

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestTemplateStringForm(t *testing.T) {
	var tpl Template
	err := json.Unmarshal([]byte(`"ffmpeg -y -i $IN$ -metadata comment=\"converted batch\" $OUT$"`), &tpl)
	if err != nil {
		t.Fatal(err)
	}
	want := Template{"ffmpeg", "-y", "-i", "$IN$", "-metadata", "comment=converted batch", "$OUT$"}
	if !reflect.DeepEqual(tpl, want) {
		t.Errorf("tokens = %q, want %q", tpl, want)
	}
}

func TestTemplateArrayForm(t *testing.T) {
	var tpl Template
	if err := json.Unmarshal([]byte(`["avifenc", "-q", "$QUALITY$", "$IN$", "$OUT$"]`), &tpl); err != nil {
		t.Fatal(err)
	}
	if len(tpl) != 5 || tpl[0] != "avifenc" {
		t.Errorf("tokens = %q", tpl)
	}
}

func TestTemplateRejectsOtherShapes(t *testing.T) {
	var tpl Template
	if err := json.Unmarshal([]byte(`42`), &tpl); err == nil {
		t.Error("numeric command accepted")
	}
	if err := json.Unmarshal([]byte(`{"cmd": "x"}`), &tpl); err == nil {
		t.Error("object command accepted")
	}
}

func TestExpand(t *testing.T) {
	tpl := Template{"ffmpeg", "-i", "$IN$", "-crf", "$CRF$", "$OUT$"}
	argv, err := tpl.Expand(map[string]string{
		"in":  "/library/a space.mov",
		"out": "/library/a space.h265.mp4.tmp-x",
		"crf": "26",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"ffmpeg", "-i", "/library/a space.mov", "-crf", "26", "/library/a space.h265.mp4.tmp-x"}
	if !reflect.DeepEqual(argv, want) {
		t.Errorf("argv = %q, want %q", argv, want)
	}
}

func TestExpandCaseInsensitiveKeys(t *testing.T) {
	tpl := Template{"-q", "$Quality$"}
	argv, err := tpl.Expand(map[string]string{"QUALITY": "80"})
	if err != nil {
		t.Fatal(err)
	}
	if argv[1] != "80" {
		t.Errorf("argv = %q", argv)
	}
}

func TestExpandValueWithSpacesStaysOneToken(t *testing.T) {
	tpl := Template{"-o", "$OUT$"}
	argv, err := tpl.Expand(map[string]string{"out": "with space/out file.avif"})
	if err != nil {
		t.Fatal(err)
	}
	if len(argv) != 2 {
		t.Fatalf("substituted value split into %d tokens: %q", len(argv), argv)
	}
}

func TestExpandUnresolvedPlaceholder(t *testing.T) {
	tpl := Template{"-cq", "$CQ$", "$IN$"}
	_, err := tpl.Expand(map[string]string{"in": "a.mov"})
	if err == nil {
		t.Fatal("expected error for unresolved placeholder")
	}
	if !strings.Contains(err.Error(), "$CQ$") {
		t.Errorf("error should name the placeholder: %v", err)
	}
}

func TestExpandMultiplePlaceholdersInOneToken(t *testing.T) {
	tpl := Template{"$DIR$/$NAME$.out"}
	argv, err := tpl.Expand(map[string]string{"dir": "/tmp", "name": "clip"})
	if err != nil {
		t.Fatal(err)
	}
	if argv[0] != "/tmp/clip.out" {
		t.Errorf("argv[0] = %q", argv[0])
	}
}

func TestPlaceholders(t *testing.T) {
	tpl := Template{"ffmpeg", "-i", "$IN$", "-crf", "$CRF$", "-x", "$crf$", "$OUT$"}
	got := tpl.Placeholders()
	want := []string{"in", "crf", "out"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("placeholders = %v, want %v", got, want)
	}
}
