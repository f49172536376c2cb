package utils

// BLAS names the implementation behind gonum's blas64 calls, used by the
// dense direct solver
var BLAS = "gonum"
