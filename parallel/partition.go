package parallel

// PartitionMap splits MaxIndex items into NP contiguous buckets
type PartitionMap struct {
	MaxIndex   int // MaxIndex is partitioned into NP partitions
	NP         int
	Partitions [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(NP, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:   maxIndex,
		NP:         NP,
		Partitions: make([][2]int, NP),
	}
	for n := 0; n < NP; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

func (pm *PartitionMap) GetBucket(index int) (bucketNum, min, max int) {
	_, bucketNum, min, max = pm.getBucketWithTryCount(index)
	return
}

func (pm *PartitionMap) getBucketWithTryCount(index int) (tryCount, bucketNum, min, max int) {
	if index < 0 || index >= pm.MaxIndex {
		return 0, -1, 0, 0
	}
	// Initial guess
	bucketNum = int(float64(pm.NP*index) / float64(pm.MaxIndex))
	for !(pm.Partitions[bucketNum][0] <= index && pm.Partitions[bucketNum][1] > index) {
		if pm.Partitions[bucketNum][0] > index {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.NP {
			return 0, -1, 0, 0
		}
		tryCount++
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (min, max int) {
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetLocal(global int) (local, bn int) {
	var (
		min int
	)
	bn, min, _ = pm.GetBucket(global)
	local = global - min
	return
}

func (pm *PartitionMap) GetGlobal(local, bn int) (global int) {
	if bn == -1 {
		global = local
		return
	}
	global = pm.Partitions[bn][0] + local
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) (max int) {
	if bn == -1 {
		max = pm.MaxIndex
		return
	}
	var (
		k1, k2 = pm.GetBucketRange(bn)
	)
	max = k2 - k1
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// Splits one dimension into NP pieces, with a maximum imbalance of one item
	var (
		Npart            = pm.MaxIndex / (pm.NP)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.NP
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}
