package tools

import (
	"encoding/json"
	"log"
	"strings"
)

// Call is one tool invocation, either emitted by the remote model as a
// function-call item or synthesized by the local command router. It exists
// only for the duration of one dispatch.
type Call struct {
	Name      string
	Arguments map[string]any
}

// ParseCall builds a Call from a function-call payload. Malformed argument
// JSON degrades to an empty-arguments call instead of failing the dispatch.
func ParseCall(name, rawArguments string) Call {
	call := Call{Name: strings.TrimSpace(name), Arguments: map[string]any{}}
	raw := strings.TrimSpace(rawArguments)
	if raw == "" {
		return call
	}
	if err := json.Unmarshal([]byte(raw), &call.Arguments); err != nil {
		log.Printf("tools: malformed arguments for %q, dispatching empty: %v", call.Name, err)
		call.Arguments = map[string]any{}
	}
	return call
}

// StringArg returns the named argument as a string, or "" when absent or of
// another type.
func (c Call) StringArg(key string) string {
	v, ok := c.Arguments[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// Definition is the function schema advertised to the remote model in the
// session configuration event.
type Definition struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Definitions lists every dispatchable action, including the gated ones; the
// authorization check happens at dispatch time, not at schema time.
func Definitions() []Definition {
	return []Definition{
		{
			Type:        "function",
			Name:        "navigate_app",
			Description: "Navigue vers une page du portail parlementaire.",
			Parameters: objectSchema(map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Chemin de la page, par exemple /documents ou /deputes.",
				},
			}, "path"),
		},
		{
			Type:        "function",
			Name:        "control_ui",
			Description: "Contrôle l'interface: thème sombre ou clair.",
			Parameters: objectSchema(map[string]any{
				"action": map[string]any{
					"type": "string",
					"enum": []string{"set_theme_dark", "set_theme_light"},
				},
			}, "action"),
		},
		{
			Type:        "function",
			Name:        "change_voice",
			Description: "Change la voix de l'assistante.",
			Parameters: objectSchema(map[string]any{
				"voice": map[string]any{
					"type":        "string",
					"description": "Identité vocale souhaitée; vide pour passer à la suivante.",
				},
			}),
		},
		{
			Type:        "function",
			Name:        "stop_conversation",
			Description: "Termine la conversation vocale en cours.",
			Parameters:  objectSchema(map[string]any{}),
		},
		{
			Type:        "function",
			Name:        "generate_document",
			Description: "Génère un document officiel (attestation, courrier, rapport).",
			Parameters: objectSchema(map[string]any{
				"document_type": map[string]any{"type": "string"},
				"subject":       map[string]any{"type": "string"},
			}, "document_type"),
		},
		{
			Type:        "function",
			Name:        "send_correspondence",
			Description: "Envoie un courrier officiel à un service ou un élu.",
			Parameters: objectSchema(map[string]any{
				"recipient": map[string]any{"type": "string"},
				"message":   map[string]any{"type": "string"},
			}, "recipient", "message"),
		},
		{
			Type:        "function",
			Name:        "lookup_contact",
			Description: "Recherche les coordonnées d'un député ou d'un service.",
			Parameters: objectSchema(map[string]any{
				"name": map[string]any{"type": "string"},
			}, "name"),
		},
		{
			Type:        "function",
			Name:        "fill_form",
			Description: "Pré-remplit un formulaire du portail avec les champs dictés.",
			Parameters: objectSchema(map[string]any{
				"form": map[string]any{"type": "string"},
				"fields": map[string]any{
					"type":                 "object",
					"additionalProperties": map[string]any{"type": "string"},
				},
			}, "form"),
		},
	}
}

// KnownTool reports whether the name is part of the advertised schema.
func KnownTool(name string) bool {
	for _, def := range Definitions() {
		if def.Name == name {
			return true
		}
	}
	return false
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
