// Package plugin is the surface for writing actions.
//
// An action is a named unit of behaviour that workflow tasks invoke. The
// runtime only sees the runtime.Action interface; this package lets action
// authors write a plain typed function instead and derives everything else.
//
// # Defining an Action
//
//	type Input struct {
//	    Text string `json:"text" validate:"required"`
//	}
//
//	type Output struct {
//	    Text      string `json:"text"`
//	    MessageID string `json:"message_id"`
//	}
//
//	var SendText = plugin.MustDefine("send_text_message", "Sends a text message",
//	    func(ctx context.Context, in Input, _ plugin.NoSettings, actx plugin.Context) (Output, error) {
//	        id, err := deliver(ctx, actx.Channel, in.Text)
//	        return Output{Text: in.Text, MessageID: id}, err
//	    })
//
// Action names must be snake_case. The input, output and settings JSON
// schemas are reflected from the json tags of the three type parameters:
// fields without omitempty are required.
//
// # Settings
//
// Settings are static, per-installation configuration (API tokens, base
// URLs). They are declared with the same tags as the rest of the config
// layer:
//
//	type Settings struct {
//	    BaseURL string        `json:"base_url" validate:"required,url_format"`
//	    Timeout time.Duration `json:"timeout" default:"30s"`
//	}
//
// Defaults are applied and validate tags checked once, when the action is
// registered. A failure there is fatal at startup and never surfaces during
// a run.
//
// # Input and Output
//
// Input arrives already evaluated from the task's expressions and validated
// against the input schema. It is decoded into the input type with weak
// typing, so "10" decodes into an int field. The returned value is encoded
// back to its JSON form and validated against the output schema before the
// runtime records it; an invalid output fails the task.
//
// # Lifecycle
//
// An action value may also implement Initializer and Shutdowner. The
// registry calls Initialize in registration order at startup and Shutdown in
// reverse order on exit.
package plugin
