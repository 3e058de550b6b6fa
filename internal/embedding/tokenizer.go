package embedding

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokenizer turns text into model input ids and an attention mask, both of
// length seqLen.
type Tokenizer interface {
	Encode(text string, seqLen int) ([]int64, []int64)
}

const maxWordRunes = 100

type specialTokenMeta struct {
	IDs []int64 `json:"ids"`
}

// WordPieceTokenizer is an uncased BERT tokenizer: basic splitting on
// whitespace and punctuation, accent stripping, then greedy WordPiece.
type WordPieceTokenizer struct {
	vocab        map[string]int64
	lowerCase    bool
	clsID        int64
	sepID        int64
	padID        int64
	unkID        int64
	continuation string
}

// LoadWordPieceTokenizer builds the tokenizer from vocab.txt.
func LoadWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		token := strings.TrimRight(sc.Text(), "\r\n")
		vocab[token] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan vocab: %w", err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocab %s is empty", filepath.Base(path))
	}
	return newWordPiece(vocab), nil
}

func newWordPiece(vocab map[string]int64) *WordPieceTokenizer {
	return &WordPieceTokenizer{
		vocab:        vocab,
		lowerCase:    true,
		continuation: "##",
		clsID:        vocab["[CLS]"],
		sepID:        vocab["[SEP]"],
		padID:        vocab["[PAD]"],
		unkID:        vocab["[UNK]"],
	}
}

// LoadTokenizerFromDir loads a tokenizer from vocab.txt or tokenizer.json.
func LoadTokenizerFromDir(dir string) (Tokenizer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("tokenizer dir is empty")
	}
	for _, path := range []string{
		filepath.Join(dir, "vocab.txt"),
		filepath.Join(dir, "tokenizer", "vocab.txt"),
	} {
		if _, err := os.Stat(path); err == nil {
			return LoadWordPieceTokenizer(path)
		}
	}
	for _, path := range []string{
		filepath.Join(dir, "tokenizer.json"),
		filepath.Join(dir, "tokenizer", "tokenizer.json"),
	} {
		if _, err := os.Stat(path); err == nil {
			return loadTokenizerFromJSON(path)
		}
	}
	return nil, fmt.Errorf("tokenizer assets not found in %s (vocab.txt or tokenizer.json)", dir)
}

func loadTokenizerFromJSON(path string) (Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer.json: %w", err)
	}
	var raw struct {
		Model struct {
			Type         string `json:"type"`
			Vocab        any    `json:"vocab"`
			UnkID        int    `json:"unk_id"`
			ByteFallback bool   `json:"byte_fallback"`
		} `json:"model"`
		PostProcessor struct {
			SpecialTokens map[string]specialTokenMeta `json:"special_tokens"`
		} `json:"post_processor"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode tokenizer.json: %w", err)
	}

	if strings.EqualFold(strings.TrimSpace(raw.Model.Type), "unigram") {
		tokens, scores, vocab := vocabWithScores(raw.Model.Vocab)
		if len(tokens) == 0 {
			return nil, fmt.Errorf("tokenizer.json missing vocab")
		}
		specials := raw.PostProcessor.SpecialTokens
		return newUnigramTokenizer(tokens, scores, vocab, raw.Model.UnkID, raw.Model.ByteFallback,
			pickSpecialID(vocab, specials, "[CLS]", "<s>"),
			pickSpecialID(vocab, specials, "[SEP]", "</s>"),
			pickSpecialID(vocab, specials, "[PAD]", "<pad>"),
		), nil
	}

	if vocab := vocabFromMap(raw.Model.Vocab); len(vocab) > 0 {
		return newWordPiece(vocab), nil
	}
	return nil, fmt.Errorf("tokenizer.json missing vocab")
}

func vocabWithScores(raw any) ([]string, []float64, map[string]int64) {
	items, ok := raw.([]any)
	if !ok {
		return nil, nil, nil
	}
	tokens := make([]string, 0, len(items))
	scores := make([]float64, 0, len(items))
	vocab := make(map[string]int64, len(items))
	for _, item := range items {
		pair, ok := item.([]any)
		if !ok || len(pair) < 2 {
			continue
		}
		token, ok := pair[0].(string)
		if !ok || token == "" {
			continue
		}
		score, ok := pair[1].(float64)
		if !ok {
			continue
		}
		vocab[token] = int64(len(tokens))
		tokens = append(tokens, token)
		scores = append(scores, score)
	}
	return tokens, scores, vocab
}

func vocabFromMap(raw any) map[string]int64 {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		if num, ok := v.(float64); ok {
			out[k] = int64(num)
		}
	}
	return out
}

func pickSpecialID(vocab map[string]int64, specials map[string]specialTokenMeta, names ...string) int64 {
	for _, name := range names {
		if meta, ok := specials[name]; ok && len(meta.IDs) > 0 {
			return meta.IDs[0]
		}
		if id, ok := vocab[name]; ok {
			return id
		}
	}
	return -1
}

// Encode frames the word pieces with [CLS] and [SEP], truncating from the
// end so the start of the text is kept.
func (t *WordPieceTokenizer) Encode(text string, seqLen int) ([]int64, []int64) {
	if seqLen <= 0 {
		return nil, nil
	}

	ids := make([]int64, seqLen)
	attn := make([]int64, seqLen)
	for i := range ids {
		ids[i] = t.padID
	}

	pos := 0
	ids[pos], attn[pos] = t.clsID, 1
	pos++
	room := seqLen - 1 // [SEP]
fill:
	for _, w := range t.basicTokens(text) {
		for _, id := range t.wordPiece(w) {
			if pos >= room {
				break fill
			}
			ids[pos], attn[pos] = id, 1
			pos++
		}
	}
	if pos < seqLen {
		ids[pos], attn[pos] = t.sepID, 1
	}
	return ids, attn
}

// basicTokens runs BERT basic tokenization: drop control characters, lower
// case, strip accents, split on whitespace and punctuation.
func (t *WordPieceTokenizer) basicTokens(text string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || (unicode.IsControl(r) && !unicode.IsSpace(r)):
			continue
		case unicode.IsSpace(r):
			flush()
		case isPunct(r) || isCJK(r):
			flush()
			out = append(out, string(r))
		default:
			cur = append(cur, r)
		}
	}
	flush()

	if !t.lowerCase {
		return out
	}
	for i, w := range out {
		out[i] = stripAccents(strings.ToLower(w))
	}
	return out
}

func (t *WordPieceTokenizer) wordPiece(word string) []int64 {
	if word == "" {
		return nil
	}
	if id, ok := t.vocab[word]; ok {
		return []int64{id}
	}
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []int64{t.unkID}
	}

	var pieces []int64
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := false
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = t.continuation + sub
			}
			if id, ok := t.vocab[sub]; ok {
				pieces = append(pieces, id)
				found = true
				break
			}
			end--
		}
		if !found {
			return []int64{t.unkID}
		}
		start = end
	}
	return pieces
}

func stripAccents(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isPunct follows BERT: all ASCII non-alphanumerics count, plus Unicode P*.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

type unigramTrie struct {
	children map[byte]*unigramTrie
	tokenID  int64
	score    float64
}

// UnigramTokenizer implements SentencePiece-style Viterbi segmentation over
// a tokenizer.json unigram vocabulary.
type UnigramTokenizer struct {
	vocab        map[string]int64
	scores       []float64
	unkID        int64
	unkScore     float64
	byteFallback bool
	byteTokens   map[byte]int64
	clsID        int64
	sepID        int64
	padID        int64
	trie         *unigramTrie
}

func newUnigramTokenizer(tokens []string, scores []float64, vocab map[string]int64, unkID int, byteFallback bool, clsID, sepID, padID int64) *UnigramTokenizer {
	t := &UnigramTokenizer{
		vocab:        vocab,
		scores:       scores,
		unkID:        int64(unkID),
		byteFallback: byteFallback,
		clsID:        clsID,
		sepID:        sepID,
		padID:        padID,
		trie:         &unigramTrie{tokenID: -1},
	}
	t.byteTokens = t.collectByteTokens()
	if t.unkID >= 0 && int(t.unkID) < len(t.scores) {
		t.unkScore = t.scores[t.unkID]
	}
	for id, tok := range tokens {
		t.insert(tok, int64(id))
	}
	return t
}

func (t *UnigramTokenizer) insert(token string, id int64) {
	node := t.trie
	for i := 0; i < len(token); i++ {
		if node.children == nil {
			node.children = make(map[byte]*unigramTrie)
		}
		child := node.children[token[i]]
		if child == nil {
			child = &unigramTrie{tokenID: -1}
			node.children[token[i]] = child
		}
		node = child
	}
	node.tokenID = id
	if int(id) < len(t.scores) {
		node.score = t.scores[id]
	}
}

func (t *UnigramTokenizer) collectByteTokens() map[byte]int64 {
	out := map[byte]int64{}
	for tok, id := range t.vocab {
		if len(tok) == 6 && strings.HasPrefix(tok, "<0x") && strings.HasSuffix(tok, ">") {
			var b byte
			if n, err := fmt.Sscanf(tok[3:5], "%02X", &b); err == nil && n == 1 {
				out[b] = id
			}
		}
	}
	return out
}

func (t *UnigramTokenizer) Encode(text string, seqLen int) ([]int64, []int64) {
	if seqLen <= 0 {
		return nil, nil
	}
	ids := make([]int64, seqLen)
	attn := make([]int64, seqLen)
	pad := max(t.padID, 0)
	for i := range ids {
		ids[i] = pad
	}

	body := t.tokenize(text)
	room := seqLen
	if t.sepID >= 0 {
		room--
	}
	pos := 0
	if t.clsID >= 0 && pos < room {
		ids[pos], attn[pos] = t.clsID, 1
		pos++
	}
	for _, id := range body {
		if pos >= room {
			break
		}
		ids[pos], attn[pos] = id, 1
		pos++
	}
	if t.sepID >= 0 && pos < seqLen {
		ids[pos], attn[pos] = t.sepID, 1
	}
	return ids, attn
}

func (t *UnigramTokenizer) tokenize(text string) []int64 {
	s := strings.Join(strings.Fields(text), " ")
	if s == "" {
		return nil
	}
	s = "▁" + strings.ReplaceAll(s, " ", "▁")
	input := []byte(s)
	n := len(input)
	dp := make([]float64, n+1)
	prev := make([]int, n+1)
	prevTok := make([]int64, n+1)
	for i := 1; i <= n; i++ {
		dp[i] = math.Inf(-1)
		prev[i] = -1
	}
	relax := func(from, to int, id int64, score float64) {
		if cand := dp[from] + score; cand > dp[to] {
			dp[to], prev[to], prevTok[to] = cand, from, id
		}
	}
	for i := 0; i < n; i++ {
		if math.IsInf(dp[i], -1) {
			continue
		}
		node := t.trie
		matched := false
		for j := i; j < n && node != nil; j++ {
			node = node.children[input[j]]
			if node != nil && node.tokenID >= 0 {
				matched = true
				relax(i, j+1, node.tokenID, node.score)
			}
		}
		if matched {
			continue
		}
		if t.byteFallback {
			if id, ok := t.byteTokens[input[i]]; ok {
				relax(i, i+1, id, t.scoreFor(id))
				continue
			}
		}
		if t.unkID >= 0 {
			relax(i, i+1, t.unkID, t.unkScore)
		}
	}
	if math.IsInf(dp[n], -1) {
		return nil
	}
	var out []int64
	for pos := n; pos > 0; pos = prev[pos] {
		out = append(out, prevTok[pos])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (t *UnigramTokenizer) scoreFor(id int64) float64 {
	if id >= 0 && int(id) < len(t.scores) {
		return t.scores[id]
	}
	return 0
}
