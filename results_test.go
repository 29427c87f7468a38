package tellerd

import (
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/tellerd/api"
)

func TestTextAudienceAnnotations(t *testing.T) {
	t.Parallel()

	u := userText("hello")
	if u.Annotations == nil || len(u.Annotations.Audience) != 1 || u.Annotations.Audience[0] != mcpsdk.Role("user") {
		t.Fatalf("unexpected user annotation %+v", u.Annotations)
	}
	a := assistantText("steer")
	if a.Annotations.Audience[0] != mcpsdk.Role("assistant") {
		t.Fatalf("unexpected assistant annotation %+v", a.Annotations)
	}
}

func TestWidgetResultCarriesWidgetMeta(t *testing.T) {
	t.Parallel()

	w := api.ConfirmationWidget("do it", nil, nil)
	res := widgetResult("please confirm", w)
	if res.IsError {
		t.Fatalf("widget results are not errors")
	}
	if got, ok := res.Meta[api.MetaWidget].(*api.Widget); !ok || got != w {
		t.Fatalf("expected widget in meta, got %#v", res.Meta)
	}
}

func TestValidationFailureIsUserError(t *testing.T) {
	t.Parallel()

	res := validationFailure("bad input")
	if !res.IsError {
		t.Fatalf("expected isError")
	}
	if contentText(t, res) != "bad input" {
		t.Fatalf("unexpected text %q", contentText(t, res))
	}
}

func TestResolveFailureUsesGenericMessage(t *testing.T) {
	t.Parallel()

	res := resolveFailure()
	if !res.IsError || contentText(t, res) != resolveFailureMessage {
		t.Fatalf("unexpected resolve failure %+v", res)
	}
}
