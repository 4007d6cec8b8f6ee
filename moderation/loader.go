package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed words/*.txt
var wordsFolder embed.FS

// WordList carries the result of the loading process including metadata
// for logging.
type WordList struct {
	Words     []string
	Languages []string
}

// LoadWordList reads the embedded per-language dictionaries (one .txt per
// language) into a unique list of forbidden words.
func LoadWordList() (*WordList, error) {
	entries, err := fs.ReadDir(wordsFolder, "words")
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		lang := strings.TrimSuffix(entry.Name(), ".txt")
		languages = append(languages, lang)

		data, err := wordsFolder.ReadFile("words/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// Scanner handles both \n and \r\n line endings.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				uniqueWords[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, fmt.Errorf("no censored words found in embedded dictionaries")
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}

	return &WordList{Words: words, Languages: languages}, nil
}
