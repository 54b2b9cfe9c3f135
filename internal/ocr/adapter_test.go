package ocr

import (
	"context"
	"errors"
	"image"
	"testing"
)

type fakeRaster struct {
	img   image.Image
	err   error
	dpi   int
	pages []int
}

func (f *fakeRaster) Render(_ context.Context, _ string, page, dpi int) (image.Image, error) {
	f.pages = append(f.pages, page)
	f.dpi = dpi
	return f.img, f.err
}

type fakePrep struct {
	large  bool
	err    error
	strong []bool
}

func (f *fakePrep) ShouldUseStrong(image.Image) bool { return f.large }

func (f *fakePrep) Process(img image.Image, strong bool) (*image.Gray, error) {
	f.strong = append(f.strong, strong)
	if f.err != nil {
		return nil, f.err
	}
	return image.NewGray(img.Bounds()), nil
}

// fakeEngine returns results[i] on the i-th call.
type fakeEngine struct {
	results [][]Fragment
	calls   int
	err     error
}

func (f *fakeEngine) Name() string             { return "fake" }
func (f *fakeEngine) Granularity() Granularity { return Word }
func (f *fakeEngine) Close() error             { return nil }

func (f *fakeEngine) Recognize(context.Context, image.Image) ([]Fragment, error) {
	i := f.calls
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return nil, nil
}

var testPage = image.NewGray(image.Rect(0, 0, 100, 100))

func TestRecognizePageNormal(t *testing.T) {
	eng := &fakeEngine{results: [][]Fragment{{frag("Сумма:", 0, 0, 60, 20), frag("1 000", 70, 0, 120, 20)}}}
	rz := &fakeRaster{img: testPage}
	prep := &fakePrep{}
	a := NewAdapter(eng, rz, prep, AdapterConfig{MinDPI: 300, Lines: DefaultLineConfig()}, nil)

	res, err := a.RecognizePage(context.Background(), "doc.pdf", 2, PageOptions{DPI: 200})
	if err != nil {
		t.Fatalf("RecognizePage: %v", err)
	}
	if rz.dpi != 300 {
		t.Errorf("rendered at %d dpi, want at least 300", rz.dpi)
	}
	if res.Text != "Сумма: 1 000" || res.Strong || res.Retried {
		t.Errorf("result = %+v", res)
	}
	if res.Page != 2 || res.Lines != 1 {
		t.Errorf("page/lines = %d/%d", res.Page, res.Lines)
	}
}

func TestRecognizePageHighDPI(t *testing.T) {
	rz := &fakeRaster{img: testPage}
	a := NewAdapter(&fakeEngine{}, rz, &fakePrep{}, AdapterConfig{MinDPI: 300}, nil)
	if _, err := a.RecognizePage(context.Background(), "doc.pdf", 1, PageOptions{DPI: 400}); err != nil {
		t.Fatal(err)
	}
	if rz.dpi != 400 {
		t.Errorf("dpi = %d, want 400", rz.dpi)
	}
}

func TestRecognizePageRetriesStrong(t *testing.T) {
	eng := &fakeEngine{results: [][]Fragment{nil, {frag("Валюта", 0, 0, 60, 20)}}}
	prep := &fakePrep{}
	a := NewAdapter(eng, &fakeRaster{img: testPage}, prep, AdapterConfig{Lines: DefaultLineConfig()}, nil)

	res, err := a.RecognizePage(context.Background(), "doc.pdf", 1, PageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Retried || !res.Strong || res.Text != "Валюта" {
		t.Errorf("result = %+v", res)
	}
	if len(prep.strong) != 2 || prep.strong[0] || !prep.strong[1] {
		t.Errorf("preprocess modes = %v", prep.strong)
	}
}

func TestRecognizePageStrongNoRetry(t *testing.T) {
	for name, tc := range map[string]struct {
		opts PageOptions
		prep *fakePrep
	}{
		"forced":     {PageOptions{Strong: true}, &fakePrep{}},
		"large page": {PageOptions{}, &fakePrep{large: true}},
	} {
		t.Run(name, func(t *testing.T) {
			eng := &fakeEngine{}
			a := NewAdapter(eng, &fakeRaster{img: testPage}, tc.prep, AdapterConfig{}, nil)
			res, err := a.RecognizePage(context.Background(), "doc.pdf", 1, tc.opts)
			if err != nil {
				t.Fatal(err)
			}
			if !res.Strong || res.Retried || eng.calls != 1 || res.Text != "" {
				t.Errorf("result = %+v, engine calls = %d", res, eng.calls)
			}
		})
	}
}

func TestRecognizePagePreprocessFailure(t *testing.T) {
	eng := &fakeEngine{}
	a := NewAdapter(eng, &fakeRaster{img: testPage}, &fakePrep{err: errors.New("corrupt")}, AdapterConfig{}, nil)
	res, err := a.RecognizePage(context.Background(), "doc.pdf", 1, PageOptions{})
	if err != nil {
		t.Fatalf("preprocess failure should not be fatal: %v", err)
	}
	if res.Text != "" || len(res.Warnings) != 1 || eng.calls != 0 {
		t.Errorf("result = %+v, engine calls = %d", res, eng.calls)
	}
}

func TestRecognizePageErrors(t *testing.T) {
	a := NewAdapter(&fakeEngine{}, &fakeRaster{err: errors.New("boom")}, &fakePrep{}, AdapterConfig{}, nil)
	if _, err := a.RecognizePage(context.Background(), "doc.pdf", 1, PageOptions{}); err == nil {
		t.Error("rasterize error swallowed")
	}
	a = NewAdapter(&fakeEngine{err: errors.New("engine down")}, &fakeRaster{img: testPage}, &fakePrep{}, AdapterConfig{}, nil)
	if _, err := a.RecognizePage(context.Background(), "doc.pdf", 1, PageOptions{}); err == nil {
		t.Error("engine error swallowed")
	}
}
