package tree

import "sync/atomic"

type observerRef struct {
	obs Observer
}

var observer atomic.Pointer[observerRef]

// SetObserver installs obs process-wide, nil uninstalls it. Only nodes
// created while an observer is installed report their reclamation.
func SetObserver(obs Observer) {
	if obs == nil {
		observer.Store(nil)
		return
	}
	observer.Store(&observerRef{obs: obs})
}

func loadObserver() Observer {
	if ref := observer.Load(); ref != nil {
		return ref.obs
	}
	return nil
}

func notifyAttached() {
	if obs := loadObserver(); obs != nil {
		obs.NodeAttached()
	}
}

func notifyDetached() {
	if obs := loadObserver(); obs != nil {
		obs.NodeDetached()
	}
}
