package translator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Static looks phrases up in an in-memory phrasebook keyed by target code.
// Matching ignores case, repeated whitespace and trailing punctuation.
type Static struct {
	mu    sync.RWMutex
	table map[string]map[string]string
}

func NewStatic() *Static {
	s := &Static{table: map[string]map[string]string{}}
	s.Merge(builtinPhrasebook)
	return s
}

func (s *Static) Name() string { return "static" }

// Merge adds entries, replacing any existing ones.
func (s *Static) Merge(book map[string]map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for target, phrases := range book {
		target = strings.ToLower(target)
		if s.table[target] == nil {
			s.table[target] = map[string]string{}
		}
		for src, dst := range phrases {
			s.table[target][normalize(src)] = dst
		}
	}
}

// LoadFile merges a YAML phrasebook of the form target -> source -> text.
func (s *Static) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read phrasebook: %w", err)
	}
	var book map[string]map[string]string
	if err := yaml.Unmarshal(data, &book); err != nil {
		return fmt.Errorf("parse phrasebook %s: %w", path, err)
	}
	s.Merge(book)
	return nil
}

func (s *Static) Translate(ctx context.Context, text, source, target string) (Translation, error) {
	if err := ctx.Err(); err != nil {
		return Translation{}, err
	}
	s.mu.RLock()
	out, ok := s.table[strings.ToLower(target)][normalize(text)]
	s.mu.RUnlock()
	if !ok {
		return Translation{}, fmt.Errorf("%w for %q in %s", ErrNoEntry, text, target)
	}
	if source == "" {
		source = "auto"
	}
	return Translation{SourceText: text, TranslatedText: out, SourceLang: source, TargetLang: target}, nil
}

func normalize(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r)
	})
}

var builtinPhrasebook = map[string]map[string]string{
	"es": {
		"Hello, this is a simulated transcription of your speech.": "Hola, esta es una transcripción simulada de tu voz.",
		"How are you doing today?":                                 "¿Cómo estás hoy?",
		"Can you help me find the train station?":                  "¿Puedes ayudarme a encontrar la estación de tren?",
		"Thank you very much.":                                     "Muchas gracias.",
		"Where is the nearest hospital?":                           "¿Dónde está el hospital más cercano?",
		"I would like a cup of coffee, please.":                    "Quisiera una taza de café, por favor.",
		"Hello":                                                    "Hola",
	},
	"fr": {
		"Hello, this is a simulated transcription of your speech.": "Bonjour, ceci est une transcription simulée de votre discours.",
		"How are you doing today?":                                 "Comment allez-vous aujourd'hui ?",
		"Can you help me find the train station?":                  "Pouvez-vous m'aider à trouver la gare ?",
		"Thank you very much.":                                     "Merci beaucoup.",
		"Where is the nearest hospital?":                           "Où est l'hôpital le plus proche ?",
		"I would like a cup of coffee, please.":                    "Je voudrais une tasse de café, s'il vous plaît.",
		"Hello":                                                    "Bonjour",
	},
	"de": {
		"Hello, this is a simulated transcription of your speech.": "Hallo, dies ist eine simulierte Transkription Ihrer Sprache.",
		"How are you doing today?":                                 "Wie geht es Ihnen heute?",
		"Can you help me find the train station?":                  "Können Sie mir helfen, den Bahnhof zu finden?",
		"Thank you very much.":                                     "Vielen Dank.",
		"Where is the nearest hospital?":                           "Wo ist das nächste Krankenhaus?",
		"I would like a cup of coffee, please.":                    "Ich hätte gern eine Tasse Kaffee, bitte.",
		"Hello":                                                    "Hallo",
	},
	"it": {
		"Hello, this is a simulated transcription of your speech.": "Ciao, questa è una trascrizione simulata del tuo discorso.",
		"Thank you very much.":                                     "Grazie mille.",
		"Hello":                                                    "Ciao",
	},
	"pt": {
		"Hello, this is a simulated transcription of your speech.": "Olá, esta é uma transcrição simulada da sua fala.",
		"Thank you very much.":                                     "Muito obrigado.",
		"Hello":                                                    "Olá",
	},
	"hi": {
		"Hello, this is a simulated transcription of your speech.": "नमस्ते, यह आपके भाषण का एक नकली प्रतिलेखन है।",
		"Thank you very much.":                                     "बहुत-बहुत धन्यवाद।",
		"Hello":                                                    "नमस्ते",
	},
}
