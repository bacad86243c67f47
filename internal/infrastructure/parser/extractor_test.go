package parser

import (
	"strings"
	"testing"
)

func TestExtractPrefersEmbeddedJSON(t *testing.T) {
	t.Parallel()

	html := `<html><head>
	<meta name="description" content="meta text">
	<script type="application/ld+json">{"@type":"Product","name":"X","offers":{"description":"ignored nested"},"description":"  JSON   description  "}</script>
	</head><body><p class="mg-b20">paragraph</p></body></html>`

	desc, _ := NewExtractor().Extract(html, nil, nil)
	if desc != "JSON description" {
		t.Fatalf("unexpected description %q", desc)
	}
}

func TestExtractJSONNestedOneLevel(t *testing.T) {
	t.Parallel()

	html := `<script>window.__DATA__ = {"product": {"comment": "nested comment"}};</script>`
	desc, _ := NewExtractor().Extract(html, []string{"p.none"}, nil)
	if desc != "nested comment" {
		t.Fatalf("unexpected description %q", desc)
	}
}

func TestExtractSelectorOrderAndMeta(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("あ", 60)
	html := `<html><head><meta name="description" content="` + long + `"></head>
	<body><p class="tx-productComment">short</p></body></html>`

	desc, _ := NewExtractor().Extract(html, []string{"p.tx-productComment", "meta[name=description]"}, nil)
	if desc != long {
		t.Fatalf("expected long meta content, got %q", desc)
	}
}

func TestExtractFallsBackToLongestBlock(t *testing.T) {
	t.Parallel()

	html := `<body>
	<p class="x">tiny</p>
	<div><span>Copyright 2024 all rights reserved and a very long footer text here</span></div>
	<p>This is the longest meaningful paragraph on the page.</p>
	</body>`

	desc, _ := NewExtractor().Extract(html, []string{"p.x"}, nil)
	if desc != "This is the longest meaningful paragraph on the page." {
		t.Fatalf("unexpected fallback %q", desc)
	}
}

func TestExtractReviewSkipsBoilerplate(t *testing.T) {
	t.Parallel()

	html := `<body>
	<div id="review">最初のレビューを投稿して 10ポイント GET</div>
	<div class="user-comment">とても良かったです</div>
	</body>`

	_, review := NewExtractor().Extract(html, nil, nil)
	if review != "とても良かったです" {
		t.Fatalf("unexpected review %q", review)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	t.Parallel()

	html := `<script>{"product":{"a":1},"detail":{"text":"d1"},"info":{"summary":"d2"}}</script><div id="review">great</div>`
	e := NewExtractor()
	d1, r1 := e.Extract(html, nil, nil)
	for i := 0; i < 20; i++ {
		d2, r2 := e.Extract(html, nil, nil)
		if d1 != d2 || r1 != r2 {
			t.Fatalf("non-deterministic output")
		}
	}
	if d1 != "d1" {
		t.Fatalf("expected key-ordered nested match, got %q", d1)
	}
}
