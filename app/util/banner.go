package util

const Banner = `      _        _ _
  ___| |_ _ __| | |__ __  __
 / __| __| '__| | '_ \\ \/ /
| (__| |_| |  | | |_) |>  <
 \___|\__|_|  |_|_.__//_/\_\`
