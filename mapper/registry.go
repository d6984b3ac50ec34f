package mapper

import "sort"

var registry = map[int]*Variant{}

func init() {
	for _, v := range []*Variant{
		&mapper000, &mapper002, &mapper015, &mapper028, &mapper058, &mapperD1038,
		&mapper061, &mapper091, &mapper200, &mapper202, &mapper204, &mapper330, &mapper357,
	} {
		registry[v.ID] = v
	}
}

// Lookup returns the variant for an iNES mapper number.
func Lookup(id int) (*Variant, bool) {
	v, ok := registry[id]
	return v, ok
}

// Supported returns the mapper numbers with an implementation, in ascending order.
func Supported() []int {
	ids := make([]int, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
