package quality

import (
	"bufio"
	"embed"
	"os"
	"strings"

	"go.uber.org/zap"
)

//go:embed data/words.txt
var bundled embed.FS

// loadDictionary reads the reference wordlist from the configured path
// or a system dictionary, falling back to the bundled list. Possessive
// forms are skipped. An unreadable dictionary disables the check rather
// than failing the run.
func loadDictionary(configured string) map[string]struct{} {
	paths := []string{
		configured,
		"/usr/share/dict/american-english",
		"/usr/share/dict/words",
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		dict := readWords(bufio.NewScanner(f))
		f.Close()
		zap.L().Debug("quality: dictionary loaded",
			zap.String("path", path),
			zap.Int("words", len(dict)))
		return dict
	}

	data, err := bundled.ReadFile("data/words.txt")
	if err != nil {
		zap.L().Warn("quality: no dictionary available, check disabled")
		return nil
	}
	return readWords(bufio.NewScanner(strings.NewReader(string(data))))
}

func readWords(sc *bufio.Scanner) map[string]struct{} {
	dict := make(map[string]struct{})
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.Contains(w, "'") {
			continue
		}
		dict[strings.ToLower(w)] = struct{}{}
	}
	return dict
}
