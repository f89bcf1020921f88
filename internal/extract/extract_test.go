package extract

import (
	"strings"
	"testing"
)

func TestExtract_ClosedFence(t *testing.T) {
	got := Extract("```html\n<div>hi</div>\n```\nextra")
	if got != "<div>hi</div>" {
		t.Fatalf("Extract() = %q; want %q", got, "<div>hi</div>")
	}
}

func TestExtract_PartialFence(t *testing.T) {
	got := Extract("```html\n<div>hi")
	if got != "<div>hi" {
		t.Fatalf("Extract() = %q; want %q", got, "<div>hi")
	}
}

func TestExtract_NoFence(t *testing.T) {
	got := Extract("  plain html no fences\n")
	if got != "plain html no fences" {
		t.Fatalf("Extract() = %q; want trimmed input", got)
	}
}

func TestExtract_CommentaryBeforeFence(t *testing.T) {
	got := Extract("Sure, here you go:\n```html\n<main></main>\n```")
	if got != "<main></main>" {
		t.Fatalf("Extract() = %q; want %q", got, "<main></main>")
	}
}

func TestExtract_OpenFenceEmptyBody(t *testing.T) {
	if got := Extract("```html\n"); got != "" {
		t.Fatalf("Extract() = %q; want empty string", got)
	}
}

func TestExtract_CRLFAfterOpener(t *testing.T) {
	got := Extract("```html\r\n<p>x</p>")
	if got != "<p>x</p>" {
		t.Fatalf("Extract() = %q; want %q", got, "<p>x</p>")
	}
}

func TestExtract_Deterministic(t *testing.T) {
	input := "```html\n<section>once</section>"
	first := Extract(input)
	second := Extract(input)
	if first != second {
		t.Fatalf("Extract() not deterministic: %q vs %q", first, second)
	}
}

// Streaming growth: while the fence is open every longer prefix extends
// the previous extraction; the arrival of the closing fence may shrink
// the result back to the inner content.
func TestExtract_GrowthAcrossPrefixes(t *testing.T) {
	full := "```html\n<div>\n  <p>hello</p>\n</div>\n```\ntrailing notes"
	closeAt := strings.LastIndex(full, "```")

	var prev string
	for i := len("```html\n") + 1; i <= closeAt; i++ {
		got := Extract(full[:i])
		if !strings.HasPrefix(got, strings.TrimSpace(prev)) && prev != "" {
			// Trailing whitespace trimming may shorten the tail, but the
			// stable head must never regress while the fence is open.
			t.Fatalf("extraction regressed at prefix %d: %q after %q", i, got, prev)
		}
		prev = got
	}

	final := Extract(full)
	want := "<div>\n  <p>hello</p>\n</div>"
	if final != want {
		t.Fatalf("Extract(full) = %q; want %q", final, want)
	}

	// A prefix holding part of the closing fence provisionally includes
	// the stray backticks; the completed fence drops them again.
	provisional := Extract(full[:closeAt+2])
	if !strings.HasSuffix(provisional, "``") {
		t.Fatalf("Extract(partial close) = %q; want trailing backticks", provisional)
	}
	if len(final) >= len(provisional) {
		t.Fatalf("expected final %q to be shorter than provisional %q", final, provisional)
	}
}

func TestExtract_ShrinksWhenFenceCloses(t *testing.T) {
	open := "```html\n<div>hi</div>\n``"
	closed := open + "`"

	before := Extract(open)
	after := Extract(closed)
	if after != "<div>hi</div>" {
		t.Fatalf("Extract(closed) = %q; want %q", after, "<div>hi</div>")
	}
	// The provisional result included the partial backticks; shrinking
	// at closure is expected.
	if len(after) > len(before) {
		t.Fatalf("expected closure to shrink or hold, got before=%q after=%q", before, after)
	}
}

func TestExtract_FenceMarkerInsideBodyEndsBlock(t *testing.T) {
	// A bare ``` inside the body reads as the closing fence; everything
	// after it is ignored. The scanner takes the first close, same as
	// the original pattern-matching behaviour.
	got := Extract("```html\n<pre>```</pre>\n```")
	if got != "<pre>" {
		t.Fatalf("Extract() = %q; want %q", got, "<pre>")
	}
}
