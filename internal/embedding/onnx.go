package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/sync/errgroup"
)

// ONNXEmbedder runs a sentence-transformers model exported to ONNX.
//
// Each session owns fixed [batchSize, seqLen] input tensors. Sessions are
// pooled; a call larger than batchSize is split into chunks that run on as
// many sessions as are free.
type ONNXEmbedder struct {
	name      string
	tokenizer Tokenizer
	seqLen    int
	batchSize int
	dim       int
	pooled    bool
	sessions  chan *onnxSession
	poolSize  int
	logger    *slog.Logger
}

type onnxSession struct {
	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

type modelIO struct {
	needsTokenType bool
	outputName     string
	pooled         bool
	dim            int
}

// LoadONNX loads model.onnx (or model.int8.onnx) and its tokenizer from
// s.ModelDir.
func LoadONNX(s Settings) (*ONNXEmbedder, error) {
	logger := s.logger()
	if strings.TrimSpace(s.ModelDir) == "" {
		return nil, errors.New("embedding model dir is empty")
	}
	seqLen := s.SeqLen
	if seqLen <= 0 {
		seqLen = defaultSeqLen
	}
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	poolSize := max(s.MaxSessions, 1)
	intraThr := s.IntraThreads
	if intraThr <= 0 {
		intraThr = defaultIntraThreads
	}
	interThr := s.InterThreads
	if interThr <= 0 {
		interThr = defaultInterThreads
	}

	modelPath := resolveModelPath(s.ModelDir)
	if modelPath == "" {
		return nil, fmt.Errorf("model.onnx not found in %s", s.ModelDir)
	}
	tokenizer, err := LoadTokenizerFromDir(s.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	if err := initRuntime(s.ModelDir); err != nil {
		return nil, err
	}

	io, err := inspectModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", filepath.Base(modelPath), err)
	}
	if io.dim <= 0 {
		io.dim = s.Dimension
	}
	if io.dim <= 0 {
		io.dim = hiddenSizeFromConfig(s.ModelDir)
	}
	if io.dim <= 0 {
		return nil, errors.New("embedding dimension unknown; set embedding.dimension")
	}

	e := &ONNXEmbedder{
		name:      "onnx:" + filepath.Base(filepath.Clean(s.ModelDir)),
		tokenizer: tokenizer,
		seqLen:    seqLen,
		batchSize: batchSize,
		dim:       io.dim,
		pooled:    io.pooled,
		sessions:  make(chan *onnxSession, poolSize),
		poolSize:  poolSize,
		logger:    logger,
	}
	for i := 0; i < poolSize; i++ {
		ss, err := newONNXSession(modelPath, io, batchSize, seqLen, intraThr, interThr)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("create onnx session %d/%d: %w", i+1, poolSize, err)
		}
		e.sessions <- ss
	}
	logger.Info("embedding model loaded",
		"model", filepath.Base(modelPath),
		"output", io.outputName,
		"dimension", io.dim,
		"seq_len", seqLen,
		"batch_size", batchSize,
		"sessions", poolSize,
	)
	return e, nil
}

func (e *ONNXEmbedder) Name() string   { return e.name }
func (e *ONNXEmbedder) Dimension() int { return e.dim }

// Embed returns one L2-normalized vector per text.
func (e *ONNXEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	parts := chunks(len(texts), e.batchSize)
	e.logger.Debug("embedding batch", "texts", len(texts), "chunks", len(parts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.poolSize)
	for _, r := range parts {
		g.Go(func() error {
			var ss *onnxSession
			select {
			case ss = <-e.sessions:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { e.sessions <- ss }()
			return e.run(ss, texts[r[0]:r[1]], out[r[0]:r[1]])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *ONNXEmbedder) run(ss *onnxSession, texts []string, dst [][]float32) error {
	ids := ss.inputIDs.GetData()
	mask := ss.attentionMask.GetData()
	clear(ids)
	clear(mask)
	if ss.tokenTypeIDs != nil {
		clear(ss.tokenTypeIDs.GetData())
	}
	for i, text := range texts {
		rowIDs, rowMask := e.tokenizer.Encode(text, e.seqLen)
		copy(ids[i*e.seqLen:(i+1)*e.seqLen], rowIDs)
		copy(mask[i*e.seqLen:(i+1)*e.seqLen], rowMask)
	}

	if err := ss.session.Run(); err != nil {
		return fmt.Errorf("onnx run: %w", err)
	}

	raw := ss.output.GetData()
	for i := range texts {
		var vec []float32
		if e.pooled {
			vec = append([]float32(nil), raw[i*e.dim:(i+1)*e.dim]...)
		} else {
			stride := e.seqLen * e.dim
			vec = meanPool(raw[i*stride:(i+1)*stride], mask[i*e.seqLen:(i+1)*e.seqLen], e.seqLen, e.dim)
		}
		dst[i] = l2Normalize(vec)
	}
	return nil
}

// Close releases every pooled session. It must not race with Embed.
func (e *ONNXEmbedder) Close() error {
	var errs []error
	for {
		select {
		case ss := <-e.sessions:
			errs = append(errs, ss.destroy())
		default:
			return errors.Join(errs...)
		}
	}
}

func (ss *onnxSession) destroy() error {
	var errs []error
	if ss.session != nil {
		errs = append(errs, ss.session.Destroy())
	}
	for _, t := range []*ort.Tensor[int64]{ss.inputIDs, ss.attentionMask, ss.tokenTypeIDs} {
		if t != nil {
			errs = append(errs, t.Destroy())
		}
	}
	if ss.output != nil {
		errs = append(errs, ss.output.Destroy())
	}
	return errors.Join(errs...)
}

// inspectModel reads the graph signature. A sentence_embedding output is
// used as is; otherwise token states are mean pooled.
func inspectModel(modelPath string) (modelIO, error) {
	inputs, outputs, err := ort.GetInputOutputInfoWithOptions(modelPath, nil)
	if err != nil {
		return modelIO{}, err
	}
	var io modelIO
	for _, in := range inputs {
		if in.Name == "token_type_ids" {
			io.needsTokenType = true
		}
	}
	if len(outputs) == 0 {
		return modelIO{}, errors.New("no outputs found")
	}
	pick := func(name string) (ort.InputOutputInfo, bool) {
		for _, out := range outputs {
			if strings.EqualFold(out.Name, name) {
				return out, true
			}
		}
		return ort.InputOutputInfo{}, false
	}
	out, ok := pick("sentence_embedding")
	if ok {
		io.pooled = true
	} else if out, ok = pick("last_hidden_state"); !ok {
		if out, ok = pick("token_embeddings"); !ok {
			out = outputs[0]
		}
	}
	io.outputName = out.Name
	dims := out.Dimensions
	switch {
	case io.pooled && len(dims) != 2:
		return modelIO{}, fmt.Errorf("output %s has rank %d, want 2", out.Name, len(dims))
	case !io.pooled && len(dims) == 2:
		io.pooled = true
	case !io.pooled && len(dims) != 3:
		return modelIO{}, fmt.Errorf("output %s has rank %d, want 3", out.Name, len(dims))
	}
	if last := dims[len(dims)-1]; last > 0 {
		io.dim = int(last)
	}
	return io, nil
}

func newONNXSession(modelPath string, io modelIO, batchSize, seqLen, intraThr, interThr int) (*onnxSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}
	if err := opts.SetIntraOpNumThreads(intraThr); err != nil {
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(interThr); err != nil {
		return nil, fmt.Errorf("set inter threads: %w", err)
	}

	ss := &onnxSession{}
	inputShape := ort.NewShape(int64(batchSize), int64(seqLen))
	if ss.inputIDs, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	if ss.attentionMask, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
		_ = ss.destroy()
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	inputNames := []string{"input_ids", "attention_mask"}
	inputValues := []ort.Value{ss.inputIDs, ss.attentionMask}
	if io.needsTokenType {
		if ss.tokenTypeIDs, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
			_ = ss.destroy()
			return nil, fmt.Errorf("allocate token_type_ids tensor: %w", err)
		}
		inputNames = append(inputNames, "token_type_ids")
		inputValues = append(inputValues, ss.tokenTypeIDs)
	}

	outputShape := ort.NewShape(int64(batchSize), int64(seqLen), int64(io.dim))
	if io.pooled {
		outputShape = ort.NewShape(int64(batchSize), int64(io.dim))
	}
	if ss.output, err = ort.NewEmptyTensor[float32](outputShape); err != nil {
		_ = ss.destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	ss.session, err = ort.NewAdvancedSession(
		modelPath,
		inputNames,
		[]string{io.outputName},
		inputValues,
		[]ort.Value{ss.output},
		opts,
	)
	if err != nil {
		_ = ss.destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return ss, nil
}

func hiddenSizeFromConfig(modelDir string) int {
	data, err := os.ReadFile(filepath.Join(modelDir, "config.json"))
	if err != nil {
		return 0
	}
	var cfg struct {
		HiddenSize int `json:"hidden_size"`
		Dim        int `json:"dim"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return 0
	}
	if cfg.HiddenSize > 0 {
		return cfg.HiddenSize
	}
	return cfg.Dim
}
