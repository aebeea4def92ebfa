package spectrum

import "fmt"

// Collection keeps the datasets loaded in a session together with an
// explicit active selection. Nothing in the analysis packages reaches for
// the active dataset on its own; callers pass the dataset they want.
type Collection struct {
	datasets []*Dataset
	active   int
}

// NewCollection returns an empty collection with no active dataset.
func NewCollection() *Collection {
	return &Collection{active: -1}
}

// Add appends a dataset and makes it the active one. It returns its index.
func (c *Collection) Add(d *Dataset) int {
	c.datasets = append(c.datasets, d)
	c.active = len(c.datasets) - 1
	return c.active
}

// Len returns the number of datasets.
func (c *Collection) Len() int {
	return len(c.datasets)
}

// At returns the dataset at index i.
func (c *Collection) At(i int) (*Dataset, error) {
	if i < 0 || i >= len(c.datasets) {
		return nil, fmt.Errorf("dataset index %d out of range [0, %d)", i, len(c.datasets))
	}
	return c.datasets[i], nil
}

// All returns the datasets in load order.
func (c *Collection) All() []*Dataset {
	out := make([]*Dataset, len(c.datasets))
	copy(out, c.datasets)
	return out
}

// ActiveIndex returns the index of the active dataset, -1 when empty.
func (c *Collection) ActiveIndex() int {
	return c.active
}

// Active returns the active dataset or ErrNoDataset.
func (c *Collection) Active() (*Dataset, error) {
	if c.active < 0 || c.active >= len(c.datasets) {
		return nil, ErrNoDataset
	}
	return c.datasets[c.active], nil
}

// Select makes the dataset at index i active.
func (c *Collection) Select(i int) error {
	if i < 0 || i >= len(c.datasets) {
		return fmt.Errorf("selecting dataset: index %d out of range [0, %d)", i, len(c.datasets))
	}
	c.active = i
	return nil
}

// Remove discards the dataset at index i together with its regions and fit
// results. The active selection keeps pointing at the same dataset when it
// survives, otherwise moves to the previous one.
func (c *Collection) Remove(i int) error {
	if i < 0 || i >= len(c.datasets) {
		return fmt.Errorf("removing dataset: index %d out of range [0, %d)", i, len(c.datasets))
	}

	removed := c.datasets[i]
	_ = removed.WithLock(func(d *Dataset) error {
		d.ClearRegions()
		return nil
	})

	c.datasets = append(c.datasets[:i], c.datasets[i+1:]...)

	switch {
	case len(c.datasets) == 0:
		c.active = -1
	case c.active > i:
		c.active--
	case c.active == i:
		c.active = max(i-1, 0)
	}
	return nil
}
