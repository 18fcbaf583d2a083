package cache_test

import (
	"fmt"
	"regexp"
	"time"

	"github.com/jonwraymond/remotegate/cache"
)

type User struct {
	ID   int
	Name string
}

func ExampleNewTTLCache() {
	users := cache.NewTTLCache[User]()

	users.Put("user:1", User{ID: 1, Name: "Ada"}, cache.TTLLong)

	if u, ok := users.Get("user:1"); ok {
		fmt.Println(u.Name)
	}
	_, ok := users.Get("user:2")
	fmt.Println("user:2 cached:", ok)
	// Output:
	// Ada
	// user:2 cached: false
}

func ExampleTTLCache_InvalidatePattern() {
	c := cache.NewTTLCache[string]()
	c.Put("user:1", "Ada", cache.TTLDefault)
	c.Put("user:2", "Grace", cache.TTLDefault)
	c.Put("order:1", "Book", cache.TTLDefault)

	removed := c.InvalidatePattern(regexp.MustCompile("user:.*"))
	_, orderCached := c.Get("order:1")

	fmt.Println("removed:", removed)
	fmt.Println("order cached:", orderCached)
	// Output:
	// removed: 2
	// order cached: true
}

func ExampleTTLCache_Get_expired() {
	c := cache.NewTTLCache[int]()
	c.Put("counter", 1, 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("counter")
	fmt.Println("cached:", ok, "entries:", c.Len())
	// Output:
	// cached: false entries: 0
}

func ExampleDefaultKeyer_Key() {
	keyer := cache.NewDefaultKeyer()

	k1, _ := keyer.Key("search", map[string]any{"q": "go", "page": 1})
	k2, _ := keyer.Key("search", map[string]any{"page": 1, "q": "go"})

	fmt.Println(k1 == k2)
	fmt.Println(cache.OperationPattern("search").MatchString(k1))
	// Output:
	// true
	// true
}

func ExamplePolicy_EffectiveTTL() {
	p := cache.Policy{DefaultTTL: cache.TTLDefault, MaxTTL: cache.TTLLong}

	fmt.Println(p.EffectiveTTL(0))
	fmt.Println(p.EffectiveTTL(cache.TTLShort))
	fmt.Println(p.EffectiveTTL(2 * time.Hour))
	// Output:
	// 5m0s
	// 1m0s
	// 30m0s
}

func ExampleValidateKey() {
	fmt.Println(cache.ValidateKey("user:1"))
	fmt.Println(cache.ValidateKey(""))
	// Output:
	// <nil>
	// cache: key is invalid
}
