package browser

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"weekshift/internal/watch"
)

// MutationSource adapts CDP DOM events into watch.Batch deliveries. Child
// node insertions/removals map to child-list mutations; attribute and
// character-data events are delivered with their own kinds so the watcher's
// relevance filter stays meaningful.
type MutationSource struct {
	page *rod.Page
	log  *zap.Logger
}

// NewMutationSource creates a source over the given page. A nil logger
// disables logging.
func NewMutationSource(page *rod.Page, log *zap.Logger) *MutationSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &MutationSource{page: page, log: log.Named("mutations")}
}

// Subscribe enables the DOM domain and streams mutation batches until ctx
// is cancelled or the returned cancel function is called.
func (s *MutationSource) Subscribe(ctx context.Context) (<-chan watch.Batch, func(), error) {
	ctx, stop := context.WithCancel(ctx)
	page := s.page.Context(ctx)

	if err := (proto.DOMEnable{}).Call(page); err != nil {
		stop()
		return nil, nil, err
	}
	// Child-node events are only delivered for nodes the client has seen,
	// so pull the full tree once up front.
	if err := s.pullDocument(page); err != nil {
		stop()
		return nil, nil, err
	}

	ch := make(chan watch.Batch, 16)
	emit := func(k watch.Kind) {
		// Drop on a full channel: the watcher only needs to learn that
		// something structural happened, not how many times.
		select {
		case ch <- watch.Batch{{Kind: k}}:
		default:
		}
	}

	wait := page.EachEvent(
		func(*proto.DOMChildNodeInserted) { emit(watch.KindChildList) },
		func(*proto.DOMChildNodeRemoved) { emit(watch.KindChildList) },
		func(*proto.DOMChildNodeCountUpdated) { emit(watch.KindChildList) },
		func(*proto.DOMDocumentUpdated) {
			// The whole document was replaced and node ids are void;
			// re-pull so child events keep flowing for the new tree.
			if err := s.pullDocument(page); err != nil {
				s.log.Debug("re-pull document", zap.Error(err))
			}
			emit(watch.KindChildList)
		},
		func(*proto.DOMAttributeModified) { emit(watch.KindAttributes) },
		func(*proto.DOMAttributeRemoved) { emit(watch.KindAttributes) },
		func(*proto.DOMCharacterDataModified) { emit(watch.KindCharacterData) },
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(ch)
		wait()
	}()

	cancel := func() {
		stop()
		<-done
	}
	return ch, cancel, nil
}

func (s *MutationSource) pullDocument(page *rod.Page) error {
	depth := -1
	_, err := proto.DOMGetDocument{Depth: &depth, Pierce: true}.Call(page)
	return err
}
