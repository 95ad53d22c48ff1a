package queue

import (
	"errors"
	"testing"
)

func TestDecodeScrapeResult_Valid(t *testing.T) {
	t.Parallel()

	body := []byte(`{"url":"http://a.onion","page_title":"A","page_content":"hello","meta_tags":[{"key":"description","value":"d"}],"links":["http://x.onion/"]}`)

	result, err := DecodeScrapeResult(body)
	if err != nil {
		t.Fatalf("DecodeScrapeResult: %v", err)
	}
	if result.URL != "http://a.onion" {
		t.Errorf("URL = %q, want http://a.onion", result.URL)
	}
	if len(result.Links) != 1 || result.Links[0] != "http://x.onion/" {
		t.Errorf("Links = %v, want [http://x.onion/]", result.Links)
	}
}

func TestDecodeScrapeResult_NullFieldsPermitted(t *testing.T) {
	t.Parallel()

	body := []byte(`{"url":"http://a.onion","page_title":null,"page_content":null,"meta_tags":null,"links":[]}`)

	result, err := DecodeScrapeResult(body)
	if err != nil {
		t.Fatalf("DecodeScrapeResult: %v", err)
	}
	if result.PageTitle != nil {
		t.Errorf("PageTitle = %v, want nil", result.PageTitle)
	}
}

func TestDecodeScrapeResult_MissingField(t *testing.T) {
	t.Parallel()

	body := []byte(`{"url":"http://a.onion","page_title":"A","page_content":"hello","meta_tags":[]}`)

	_, err := DecodeScrapeResult(body)
	if err == nil {
		t.Fatal("DecodeScrapeResult: want error for missing links field")
	}
	var mfe *MissingFieldError
	if !errors.As(err, &mfe) {
		t.Fatalf("DecodeScrapeResult error = %v, want *MissingFieldError", err)
	}
	if mfe.Field != "links" {
		t.Errorf("MissingFieldError.Field = %q, want links", mfe.Field)
	}
}

func TestDecodeScrapeResult_InvalidJSON(t *testing.T) {
	t.Parallel()

	if _, err := DecodeScrapeResult([]byte(`not json`)); err == nil {
		t.Fatal("DecodeScrapeResult: want error for invalid JSON")
	}
}

func TestAckDisposition_String(t *testing.T) {
	t.Parallel()

	cases := map[AckDisposition]string{Ack: "ACK", Requeue: "REQUEUE", Drop: "DROP"}
	for disposition, want := range cases {
		if got := disposition.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
