package news

import (
	"strings"
	"testing"

	"github.com/quantfeed/marketpulse/internal/contracts"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Market News</title>
    <item>
      <title>Apple Unveils New Chip</title>
      <description>&lt;p&gt;The company announced a &lt;b&gt;new processor&lt;/b&gt; line.&lt;/p&gt;</description>
      <link>https://news.example.com/a/1</link>
      <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
    </item>
    <item>
      <title>  Rally Continues  </title>
      <description>Plain text body.</description>
      <link>https://news.example.com/a/2</link>
    </item>
    <item>
      <title></title>
      <description>Headline-less item is dropped.</description>
    </item>
  </channel>
</rss>`

func TestParseFeed(t *testing.T) {
	sources, err := ParseFeed("AAPL", strings.NewReader(sampleFeed))
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("sources = %d, want 2 (empty title dropped)", len(sources))
	}

	first := sources[0]
	if first.TargetSymbol != "AAPL" {
		t.Errorf("TargetSymbol = %q, want topic", first.TargetSymbol)
	}
	headline, ok := first.Claim(contracts.ClaimHeadline)
	if !ok {
		t.Fatal("missing headline claim")
	}
	if headline.Text != "Apple Unveils New Chip" {
		t.Errorf("Text = %q", headline.Text)
	}
	if got := headline.Metadata["description"]; got != "The company announced a new processor line." {
		t.Errorf("description = %q, want HTML stripped", got)
	}
	if headline.Timestamp.Year() != 2006 {
		t.Errorf("Timestamp = %v, want parsed pubDate", headline.Timestamp)
	}

	second := sources[1]
	sh, _ := second.Claim(contracts.ClaimHeadline)
	if sh.Text != "Rally Continues" {
		t.Errorf("second Text = %q, want trimmed title", sh.Text)
	}
}

func TestParseFeedRejectsMalformedXML(t *testing.T) {
	if _, err := ParseFeed("AAPL", strings.NewReader("not xml at all <")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"<p>one <em>two</em></p>", "one two"},
		{"  <div>padded</div>  ", "padded"},
	}
	for _, tt := range tests {
		if got := StripHTML(tt.in); got != tt.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
