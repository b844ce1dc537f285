package cache

import "container/list"

type LRUOpts struct {
	Size int
}

type entry struct {
	key string
	val any
}

type getReq struct {
	key  string
	resp chan getResp
}

type getResp struct {
	val any
	ok  bool
}

type putReq struct {
	key string
	val any
}

// LRU serializes all access through one goroutine started by NewLRU.
type LRU struct {
	getCh  chan getReq
	putCh  chan putReq
	delCh  chan string
	closed chan struct{}
}

func (L *LRU) Get(key string) (any, bool) {
	resp := make(chan getResp, 1)
	select {
	case L.getCh <- getReq{key: key, resp: resp}:
	case <-L.closed:
		return nil, false
	}
	r := <-resp
	return r.val, r.ok
}

func (L *LRU) Put(key string, val any) {
	select {
	case L.putCh <- putReq{key: key, val: val}:
	case <-L.closed:
	}
}

func (L *LRU) Delete(key string) {
	select {
	case L.delCh <- key:
	case <-L.closed:
	}
}

// Close stops the owning goroutine. Later calls are no-ops and Get misses.
func (L *LRU) Close() {
	select {
	case <-L.closed:
	default:
		close(L.closed)
	}
}

func NewLRU(opts LRUOpts) *LRU {
	if opts.Size <= 0 {
		opts.Size = 128
	}

	l := &LRU{
		getCh:  make(chan getReq),
		putCh:  make(chan putReq),
		delCh:  make(chan string),
		closed: make(chan struct{}),
	}

	go l.run(opts.Size)

	return l
}

func (L *LRU) run(size int) {
	ll := list.New()
	cache := make(map[string]*list.Element)

	remove := func(ele *list.Element) {
		ll.Remove(ele)
		delete(cache, ele.Value.(*entry).key)
	}

	for {
		select {
		case <-L.closed:
			return
		case req := <-L.getCh:
			ele, ok := cache[req.key]
			if !ok {
				req.resp <- getResp{ok: false}
				continue
			}
			ll.MoveToFront(ele)
			req.resp <- getResp{val: ele.Value.(*entry).val, ok: true}
		case req := <-L.putCh:
			if ele, ok := cache[req.key]; ok {
				ll.MoveToFront(ele)
				ele.Value.(*entry).val = req.val
				continue
			}
			cache[req.key] = ll.PushFront(&entry{key: req.key, val: req.val})
			if ll.Len() > size {
				if last := ll.Back(); last != nil {
					remove(last)
				}
			}
		case key := <-L.delCh:
			if ele, ok := cache[key]; ok {
				remove(ele)
			}
		}
	}
}

var _ Cache = (*LRU)(nil)
