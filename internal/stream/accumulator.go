package stream

import "fmt"

// Chunk is a window of samples handed to the transcriber.
// Samples is owned by the chunk; the accumulator never touches it again.
type Chunk struct {
	Seq        uint64
	Samples    []float32
	SampleRate int
	Final      bool
}

// Duration returns the chunk length in seconds
func (c Chunk) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Accumulator buffers captured samples and cuts them into overlapping
// windows. It is not safe for concurrent use; the capture sink is its only
// writer.
type Accumulator struct {
	buf        []float32
	chunkSize  int
	overlap    int
	sampleRate int
	next       uint64
}

// NewAccumulator creates an accumulator for windows of chunkSize samples,
// each sharing overlap samples with the previous one.
func NewAccumulator(chunkSize, overlap, sampleRate int) (*Accumulator, error) {
	if chunkSize <= 0 {
		return nil, &ConfigError{Field: "chunk_size", Reason: fmt.Sprintf("must be positive, got %d", chunkSize)}
	}
	if overlap < 0 || chunkSize-overlap < 1 {
		return nil, &ConfigError{Field: "overlap_frames", Reason: fmt.Sprintf("%d leaves no advance for chunk size %d", overlap, chunkSize)}
	}

	return &Accumulator{
		buf:        make([]float32, 0, chunkSize*2),
		chunkSize:  chunkSize,
		overlap:    overlap,
		sampleRate: sampleRate,
	}, nil
}

// NewAccumulatorFromConfig sizes an accumulator from a pipeline config.
func NewAccumulatorFromConfig(cfg Config) (*Accumulator, error) {
	return NewAccumulator(cfg.ChunkSize(), cfg.OverlapFrames(), cfg.SampleRate)
}

// Append adds samples to the tail of the buffer.
func (a *Accumulator) Append(samples []float32) {
	a.buf = append(a.buf, samples...)
}

// ExtractReady returns every full window currently buffered, in order.
// After each window the buffer keeps only the window's last overlap samples
// in front of whatever followed it.
func (a *Accumulator) ExtractReady() []Chunk {
	var chunks []Chunk
	for len(a.buf) >= a.chunkSize {
		samples := make([]float32, a.chunkSize)
		copy(samples, a.buf[:a.chunkSize])
		chunks = append(chunks, a.newChunk(samples, false))

		a.truncate(a.chunkSize - a.overlap)
	}
	return chunks
}

// DrainRemainder empties the buffer into a final, possibly undersized chunk.
func (a *Accumulator) DrainRemainder() (Chunk, bool) {
	if len(a.buf) == 0 {
		return Chunk{}, false
	}
	samples := make([]float32, len(a.buf))
	copy(samples, a.buf)
	a.buf = a.buf[:0]
	return a.newChunk(samples, true), true
}

// Len returns the number of buffered samples
func (a *Accumulator) Len() int {
	return len(a.buf)
}

// NextSeq returns the sequence number the next chunk will carry
func (a *Accumulator) NextSeq() uint64 {
	return a.next
}

func (a *Accumulator) newChunk(samples []float32, final bool) Chunk {
	c := Chunk{
		Seq:        a.next,
		Samples:    samples,
		SampleRate: a.sampleRate,
		Final:      final,
	}
	a.next++
	return c
}

// truncate drops n samples from the front, reusing the backing array.
func (a *Accumulator) truncate(n int) {
	if n > len(a.buf) {
		n = len(a.buf)
	}
	remaining := copy(a.buf, a.buf[n:])
	a.buf = a.buf[:remaining]
}
