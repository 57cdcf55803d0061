package userid

import "sync"

const DefaultCacheSize = 100

// Cache guarda los últimos IDs resueltos. Al llenarse descarta el más antiguo
// (FIFO); una consulta no renueva la posición de la entrada.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	ids      map[string]string
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		ids:      make(map[string]string, capacity),
	}
}

func (c *Cache) Get(login string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[login]
	return id, ok
}

func (c *Cache) Put(login, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ids[login]; ok {
		c.ids[login] = id
		return
	}
	if len(c.order) == c.capacity {
		oldest := c.order[0]
		c.order = append(c.order[:0], c.order[1:]...)
		delete(c.ids, oldest)
	}
	c.order = append(c.order, login)
	c.ids[login] = id
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
